package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/store"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrTenantInactive):
		return http.StatusForbidden
	case errors.Is(err, model.ErrTenantMismatch), errors.Is(err, model.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalid), errors.Is(err, model.ErrUnknownKind), errors.Is(err, store.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrTransient):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error. Server-side failures are logged and their
// details withheld.
func fail(c echo.Context, err error) error {
	code := statusOf(err)
	switch code {
	case http.StatusInternalServerError:
		log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(code, map[string]string{"error": "internal error"})
	case http.StatusServiceUnavailable:
		log.Warnf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(code, map[string]string{"error": "store unavailable, retry later"})
	}
	return c.JSON(code, map[string]string{"error": err.Error()})
}
