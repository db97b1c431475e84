package http

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/repository"
)

var outcomes = map[model.Outcome]bool{
	model.OutcomeCreated:     true,
	model.OutcomeUpdated:     true,
	model.OutcomeUnchanged:   true,
	model.OutcomeQuarantined: true,
	model.OutcomeOrphan:      true,
	model.OutcomeFailed:      true,
	model.OutcomePlanned:     true,
}

func listMigrationItemsHandler(archive repository.MigrationArchive) echo.HandlerFunc {
	return func(c echo.Context) error {
		if archive == nil {
			return c.JSON(http.StatusNotImplemented, map[string]string{"error": "migration archive is not configured"})
		}

		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		var outcome model.Outcome
		if raw := strings.TrimSpace(c.QueryParam("outcome")); raw != "" {
			if !outcomes[model.Outcome(raw)] {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid outcome"})
			}
			outcome = model.Outcome(raw)
		}

		items, err := archive.ListItems(c.Request().Context(), c.Param("run"), outcome, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(items),
			"results": items,
		})
	}
}
