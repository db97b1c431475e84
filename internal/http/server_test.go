package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/restaurant-crm/internal/config"
	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/repository"
	"github.com/jmehdipour/restaurant-crm/internal/store"
	"github.com/jmehdipour/restaurant-crm/internal/tenant"
)

const apiKey = "secret"

type apiFixture struct {
	srv *Server
	dir *tenant.Directory
}

func newAPI(t *testing.T, archive repository.MigrationArchive) *apiFixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	dir := tenant.NewDirectory(mem)
	for _, tn := range []model.Tenant{
		{ID: "rest_donpepe_001", DisplayName: "Don Pepe", Slug: "donpepe", Active: true},
		{ID: "rest_other", DisplayName: "Other", Slug: "other", Active: true},
		{ID: "rest_closed", DisplayName: "Closed", Slug: "closed", Active: true},
	} {
		_, err := dir.Create(ctx, tn)
		require.NoError(t, err)
	}
	_, err := dir.Deactivate(ctx, "rest_closed")
	require.NoError(t, err)

	var cfg config.Config
	cfg.HTTP.APIKeys = []string{apiKey}
	cfg.Log.Level = "error"

	srv := NewServer(cfg, Deps{
		Tenants:  dir,
		Entities: repository.NewEntityRepository(mem, dir),
		Archive:  archive,
	})
	return &apiFixture{srv: srv, dir: dir}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-API-Key", apiKey)
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

func TestHealthAndAuth(t *testing.T) {
	f := newAPI(t, nil)

	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	f.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tenants", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	code, body := f.do(t, http.MethodGet, "/v1/tenants", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, body["count"])
}

func TestTenantEndpoints(t *testing.T) {
	f := newAPI(t, nil)

	code, body := f.do(t, http.MethodGet, "/v1/tenants/rest_donpepe_001", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "donpepe", body["slug"])

	code, _ = f.do(t, http.MethodGet, "/v1/tenants/nobody", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEntityLifecycle(t *testing.T) {
	f := newAPI(t, nil)
	base := "/v1/tenants/rest_donpepe_001/customers"

	code, body := f.do(t, http.MethodPost, base, `{"id":"c1","name":"Pepe","email":"PEPE@example.com","labels":["vip"]}`)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, "pepe@example.com", body["email"])
	assert.Equal(t, "rest_donpepe_001", body["tenantId"])

	code, body = f.do(t, http.MethodGet, base+"/c1", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Pepe", body["name"])

	code, body = f.do(t, http.MethodPatch, base+"/c1", `{"tier":"vip"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "vip", body["tier"])

	code, _ = f.do(t, http.MethodPatch, base+"/c1", `{"tenantId":"rest_other"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodGet, base+"?tier=vip", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, _ = f.do(t, http.MethodGet, base+"?shoeSize=42", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodDelete, base+"/c1", "")
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = f.do(t, http.MethodDelete, base+"/c1", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = f.do(t, http.MethodGet, base+"/c1", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestErrorMapping(t *testing.T) {
	f := newAPI(t, nil)

	code, _ := f.do(t, http.MethodGet, "/v1/tenants/rest_donpepe_001/invoices", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodGet, "/v1/tenants/nobody/products", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/v1/tenants/rest_closed/products", `{"name":"Flan","price":350}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(t, http.MethodPost, "/v1/tenants/rest_donpepe_001/products", `{"price":350}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/v1/tenants/rest_donpepe_001/products", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	// an id claimed by one tenant cannot be reused by another
	code, _ = f.do(t, http.MethodPost, "/v1/tenants/rest_donpepe_001/products", `{"id":"p1","name":"Flan","price":350}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = f.do(t, http.MethodPost, "/v1/tenants/rest_other/products", `{"id":"p1","name":"Tarta","price":400}`)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = f.do(t, http.MethodPost, "/v1/tenants/rest_donpepe_001/products", `{"id":"p1","name":"Flan","price":350}`)
	assert.Equal(t, http.StatusConflict, code)

	// and stays invisible there
	code, _ = f.do(t, http.MethodGet, "/v1/tenants/rest_other/products/p1", "")
	assert.Equal(t, http.StatusNotFound, code)
}

type fixedArchive struct{ items []model.MigrationItem }

func (a fixedArchive) InsertItems(context.Context, []model.MigrationItem) error { return nil }

func (a fixedArchive) ListItems(_ context.Context, runID string, outcome model.Outcome, _, _ int) ([]model.MigrationItem, error) {
	var out []model.MigrationItem
	for _, it := range a.items {
		if it.RunID == runID && (outcome == "" || it.Outcome == outcome) {
			out = append(out, it)
		}
	}
	return out, nil
}

func TestMigrationItems(t *testing.T) {
	code, _ := newAPI(t, nil).do(t, http.MethodGet, "/v1/migrations/runs/r1/items", "")
	assert.Equal(t, http.StatusNotImplemented, code)

	f := newAPI(t, fixedArchive{items: []model.MigrationItem{
		{RunID: "r1", SourcePath: "a", Outcome: model.OutcomeCreated},
		{RunID: "r1", SourcePath: "b", Outcome: model.OutcomeOrphan},
		{RunID: "r2", SourcePath: "c", Outcome: model.OutcomeCreated},
	}})

	code, body := f.do(t, http.MethodGet, "/v1/migrations/runs/r1/items?outcome=orphan", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["count"])

	code, _ = f.do(t, http.MethodGet, "/v1/migrations/runs/r1/items?outcome=bogus", "")
	assert.Equal(t, http.StatusBadRequest, code)
}
