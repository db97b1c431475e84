package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(e *echo.Echo, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddleware(t *testing.T) {
	e := echo.New()
	e.GET("/x", ok, APIKeyMiddleware([]string{"secret", " "}))

	assert.Equal(t, http.StatusUnauthorized, serve(e, "/x", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/x", map[string]string{"X-API-Key": "nope"}).Code)
	assert.Equal(t, http.StatusOK, serve(e, "/x", map[string]string{"X-API-Key": "secret"}).Code)

	open := echo.New()
	open.GET("/x", ok, APIKeyMiddleware(nil))
	assert.Equal(t, http.StatusOK, serve(open, "/x", nil).Code)
}

func TestRateLimitMiddleware_PerTenant(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	fixed := time.Date(2024, 1, 1, 12, 0, 0, 250_000_000, time.UTC)
	e := echo.New()
	e.GET("/t/:tenant", ok, RateLimitMiddleware(RateLimitConfig{
		Redis:          rdb,
		DefaultRPS:     2,
		RetryAfterHint: true,
		now:            func() time.Time { return fixed },
	}))

	assert.Equal(t, http.StatusOK, serve(e, "/t/a", nil).Code)
	assert.Equal(t, http.StatusOK, serve(e, "/t/a", nil).Code)
	limited := serve(e, "/t/a", nil)
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	// another tenant has its own window
	assert.Equal(t, http.StatusOK, serve(e, "/t/b", nil).Code)
}

func TestRateLimitMiddleware_NoRedisAllows(t *testing.T) {
	e := echo.New()
	e.GET("/t/:tenant", ok, RateLimitMiddleware(RateLimitConfig{DefaultRPS: 1}))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, "/t/a", nil).Code)
	}
}
