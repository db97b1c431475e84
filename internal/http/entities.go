package http

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/repository"
	"github.com/jmehdipour/restaurant-crm/internal/store"
	"github.com/jmehdipour/restaurant-crm/internal/tenant"
)

// bindBody decodes only the request body; path and query parameters never
// leak into entities or patches.
func bindBody(c echo.Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return fmt.Errorf("%w: bad request body", model.ErrInvalid)
	}
	return nil
}

func listEntitiesHandler(dir *tenant.Directory, repo *repository.EntityRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		kind, err := model.ParseKind(c.Param("kind"))
		if err != nil {
			return fail(c, err)
		}
		tenantID := c.Param("tenant")
		if _, err := dir.Get(c.Request().Context(), tenantID); err != nil {
			return fail(c, err)
		}

		q := repository.ListQuery{Limit: 100}
		params := c.QueryParams()
		fields := make([]string, 0, len(params))
		for name := range params {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		for _, name := range fields {
			raw := params.Get(name)
			switch name {
			case "limit":
				n, err := strconv.Atoi(raw)
				if err != nil || n <= 0 || n > 1000 {
					return fail(c, fmt.Errorf("%w: limit must be between 1 and 1000", model.ErrInvalid))
				}
				q.Limit = n
			case "order":
				if raw != "newest" {
					return fail(c, fmt.Errorf("%w: order %q", model.ErrInvalid, raw))
				}
				q.Newest = true
			default:
				f, err := repository.ParseFilter(kind, name, raw)
				if err != nil {
					return fail(c, err)
				}
				q.Filters = append(q.Filters, f)
			}
		}

		list, err := repo.List(c.Request().Context(), tenantID, kind, q)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(list),
			"results": list,
		})
	}
}

func createEntityHandler(repo *repository.EntityRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		kind, err := model.ParseKind(c.Param("kind"))
		if err != nil {
			return fail(c, err)
		}
		e, err := model.New(kind)
		if err != nil {
			return fail(c, err)
		}
		if err := bindBody(c, e); err != nil {
			return fail(c, err)
		}
		created, err := repo.Create(c.Request().Context(), c.Param("tenant"), e)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusCreated, created)
	}
}

func getEntityHandler(repo *repository.EntityRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		kind, err := model.ParseKind(c.Param("kind"))
		if err != nil {
			return fail(c, err)
		}
		e, err := repo.Get(c.Request().Context(), c.Param("tenant"), kind, c.Param("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, e)
	}
}

func updateEntityHandler(repo *repository.EntityRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		kind, err := model.ParseKind(c.Param("kind"))
		if err != nil {
			return fail(c, err)
		}
		var patch store.Fields
		if err := bindBody(c, &patch); err != nil {
			return fail(c, err)
		}
		e, err := repo.Update(c.Request().Context(), c.Param("tenant"), kind, c.Param("id"), patch)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, e)
	}
}

func deleteEntityHandler(repo *repository.EntityRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		kind, err := model.ParseKind(c.Param("kind"))
		if err != nil {
			return fail(c, err)
		}
		if err := repo.Delete(c.Request().Context(), c.Param("tenant"), kind, c.Param("id")); err != nil {
			return fail(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
