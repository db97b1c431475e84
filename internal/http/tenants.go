package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/restaurant-crm/internal/tenant"
)

func listTenantsHandler(dir *tenant.Directory) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := dir.List(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(list),
			"results": list,
		})
	}
}

func getTenantHandler(dir *tenant.Directory) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, err := dir.Get(c.Request().Context(), c.Param("tenant"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}
