package migration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/restaurant-crm/internal/layout"
	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/repository"
	"github.com/jmehdipour/restaurant-crm/internal/store"
	"github.com/jmehdipour/restaurant-crm/internal/tenant"
	"github.com/jmehdipour/restaurant-crm/internal/util"
)

const donPepe = "rest_donpepe_001"

type fixture struct {
	mem  *store.Memory
	dir  *tenant.Directory
	repo *repository.EntityRepository
}

// newFixture registers Don Pepe (slug "donpepe"). wrap, when set, sits
// between the repository and the memory store.
func newFixture(t *testing.T, wrap func(*store.Memory) store.Store) *fixture {
	t.Helper()
	mem := store.NewMemory()
	var s store.Store = mem
	if wrap != nil {
		s = wrap(mem)
	}
	dir := tenant.NewDirectory(mem)
	_, err := dir.Create(context.Background(), model.Tenant{
		ID: donPepe, DisplayName: "Don Pepe", Slug: "donpepe", Active: true, Currency: "EUR",
	})
	require.NoError(t, err)
	return &fixture{mem: mem, dir: dir, repo: repository.NewEntityRepository(s, dir)}
}

func (f *fixture) auditor(opts Options) *Auditor {
	opts.DefaultCountryCode = "+34"
	return NewAuditor(f.mem, f.dir, f.repo, opts)
}

func (f *fixture) legacy(t *testing.T, path string, fields store.Fields) {
	t.Helper()
	require.NoError(t, f.mem.Create(context.Background(), path, fields))
}

func item(t *testing.T, rep *Report, source string) model.MigrationItem {
	t.Helper()
	for _, it := range rep.Items {
		if it.SourcePath == source {
			return it
		}
	}
	t.Fatalf("no report item for %s", source)
	return model.MigrationItem{}
}

const customerForm = "clients/rest_donpepe_001/Formularios/1700000000000_cliente_chat123"

func TestRun_CustomerFormMovesToCurrentLayout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.legacy(t, customerForm, store.Fields{
		"formType":           "cliente",
		"restauranteId":      donPepe,
		"Nombre":             "Pepe García",
		"Correo electrónico": "Pepe@Example.com",
	})

	rep, err := f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)

	id := util.StableID(donPepe, "1700000000000_cliente_chat123")
	it := item(t, rep, customerForm)
	assert.Equal(t, model.OutcomeCreated, it.Outcome)
	assert.Equal(t, model.KindCustomer, it.Kind)
	assert.Equal(t, donPepe, it.TenantID)
	assert.Equal(t, "clients/rest_donpepe_001/clientes/"+id, it.TargetPath)
	assert.Equal(t, rep.RunID, it.RunID)

	e, err := f.repo.Get(ctx, donPepe, model.KindCustomer, id)
	require.NoError(t, err)
	c := e.(*model.Customer)
	assert.Equal(t, "Pepe García", c.Name)
	assert.Equal(t, "pepe@example.com", c.Email)
	assert.True(t, time.UnixMilli(1700000000000).Equal(c.CreatedAt))

	require.Len(t, rep.Counts, 1)
	assert.Equal(t, KindCount{TenantID: donPepe, Kind: model.KindCustomer, Legacy: 1, Current: 1, Total: 1}, rep.Counts[0])
}

func TestRun_OrphanIsNeverWritten(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.legacy(t, "clients/ghost/Formularios/sinclave", store.Fields{
		"formType": "cliente",
		"nombre":   "Nadie",
	})
	f.legacy(t, "clients/ghost/Formularios/1700000000000_pedido_600111222", store.Fields{
		"pedido": "2 pizzas",
	})
	before := f.mem.Len()

	rep, err := f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeOrphan, item(t, rep, "clients/ghost/Formularios/sinclave").Outcome)
	unknown := item(t, rep, "clients/ghost/Formularios/1700000000000_pedido_600111222")
	assert.Equal(t, model.OutcomeOrphan, unknown.Outcome)
	assert.Contains(t, unknown.Detail, "ghost")
	assert.Equal(t, before, f.mem.Len())
	assert.Empty(t, rep.Counts)
}

// seedMixed stores one legacy document of every shape the auditor handles.
func seedMixed(t *testing.T, f *fixture) {
	f.legacy(t, customerForm, store.Fields{
		"formType": "cliente", "restauranteId": donPepe, "Nombre": "Pepe García",
	})
	f.legacy(t, "clients/donpepe/Formularios/1700000000001_pedido_600111222", store.Fields{
		"Tipo de pedido": "A domicilio",
		"Dirección":      "Calle Mayor 1",
		"Pedido":         "2 pizzas",
		"Total":          "23,50 €",
	})
	f.legacy(t, "clients/rest_donpepe_001/Formularios/1700000000002_restaurante_x1", store.Fields{
		"formType": "restaurante", "nombre": "Don Pepe",
	})
	f.legacy(t, "clients/rest_donpepe_001/Formularios/1700000000003_reservas particulares_chat9", store.Fields{
		"businessId":  donPepe,
		"Nombre":      "Ana",
		"Nº personas": "4",
		"Fecha":       "24/12/2024",
		"Hora":        "21:30",
	})
	f.legacy(t, "restaurantes/rest_donpepe_001/productos/p1", store.Fields{
		"name": "Paella", "price": 1800, "category": "arroces", "available": true,
	})
}

func TestRun_MixedLegacyData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	seedMixed(t, f)

	rep, err := f.auditor(Options{Concurrency: 2}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Scanned)
	assert.Equal(t, map[model.Outcome]int{
		model.OutcomeCreated:     4,
		model.OutcomeQuarantined: 1,
	}, rep.Tally())

	q := rep.ByOutcome(model.OutcomeQuarantined)
	require.Len(t, q, 1)
	assert.Contains(t, q[0].Detail, "restaurante")

	orderID := util.StableID(donPepe, "1700000000001_pedido_600111222")
	e, err := f.repo.Get(ctx, donPepe, model.KindOrder, orderID)
	require.NoError(t, err)
	o := e.(*model.Order)
	assert.Equal(t, model.OrderDelivery, o.OrderType)
	assert.Equal(t, model.Money(2350), o.Total)
	assert.Equal(t, "+34600111222", o.Contact)
	assert.Equal(t, model.OrderPending, o.Status)

	resID := util.StableID(donPepe, "1700000000003_reservas particulares_chat9")
	e, err = f.repo.Get(ctx, donPepe, model.KindReservation, resID)
	require.NoError(t, err)
	r := e.(*model.Reservation)
	assert.Equal(t, 4, r.PartySize)
	assert.Equal(t, "chat9", r.Contact)
	assert.True(t, time.Date(2024, 12, 24, 21, 30, 0, 0, time.UTC).Equal(r.RequestedAt))

	e, err = f.repo.Get(ctx, donPepe, model.KindProduct, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Paella", e.(*model.Product).Name)
	assert.Equal(t, model.Money(1800), e.(*model.Product).Price)

	assert.Len(t, rep.Counts, 4)
	assert.Empty(t, rep.Regressions())
}

func TestRun_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	seedMixed(t, f)

	_, err := f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)
	size := f.mem.Len()

	rep, err := f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[model.Outcome]int{
		model.OutcomeUnchanged:   4,
		model.OutcomeQuarantined: 1,
	}, rep.Tally())
	assert.Equal(t, size, f.mem.Len())
}

func TestRun_UpdatesDriftedDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.legacy(t, customerForm, store.Fields{
		"formType": "cliente", "restauranteId": donPepe, "Nombre": "Pepe García",
	})
	_, err := f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)

	id := util.StableID(donPepe, "1700000000000_cliente_chat123")
	_, err = f.repo.Update(ctx, donPepe, model.KindCustomer, id, store.Fields{"name": "Someone Else"})
	require.NoError(t, err)

	rep, err := f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)
	it := item(t, rep, customerForm)
	assert.Equal(t, model.OutcomeUpdated, it.Outcome)
	assert.Equal(t, "name", it.Detail)

	e, err := f.repo.Get(ctx, donPepe, model.KindCustomer, id)
	require.NoError(t, err)
	assert.Equal(t, "Pepe García", e.(*model.Customer).Name)

	rep, err = f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeUnchanged, item(t, rep, customerForm).Outcome)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	seedMixed(t, f)
	before := f.mem.Len()

	rep, err := f.auditor(Options{DryRun: true}).Run(ctx)
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.Equal(t, 4, rep.Tally()[model.OutcomePlanned])
	assert.Equal(t, before, f.mem.Len())
	assert.Empty(t, rep.Regressions())
}

type failingCreates struct {
	*store.Memory
	prefix string
}

func (s failingCreates) Create(ctx context.Context, path string, fields store.Fields) error {
	if strings.HasPrefix(path, s.prefix) {
		return fmt.Errorf("%s: %w", path, store.ErrTransient)
	}
	return s.Memory.Create(ctx, path, fields)
}

func TestRun_WriteFailureIsACountRegression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(m *store.Memory) store.Store {
		return failingCreates{Memory: m, prefix: "clients/rest_donpepe_001/reservas/"}
	})
	seedMixed(t, f)

	rep, err := f.auditor(Options{}).Run(ctx)
	require.ErrorIs(t, err, ErrRegression)
	require.NotNil(t, rep)

	failed := rep.ByOutcome(model.OutcomeFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, model.KindReservation, failed[0].Kind)
	assert.Equal(t, 3, rep.Tally()[model.OutcomeCreated])

	reg := rep.Regressions()
	require.Len(t, reg, 1)
	assert.Equal(t, KindCount{TenantID: donPepe, Kind: model.KindReservation, Legacy: 1, Current: 0, Total: 0}, reg[0])
}

func TestRun_NativeDocumentsDoNotHideLostTargets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(m *store.Memory) store.Store {
		return failingCreates{Memory: m, prefix: "clients/rest_donpepe_001/clientes/"}
	})
	native := repository.NewEntityRepository(f.mem, f.dir)
	_, err := native.Create(ctx, donPepe, &model.Customer{Meta: model.Meta{ID: "native1"}, Name: "Lola"})
	require.NoError(t, err)

	f.legacy(t, customerForm, store.Fields{"formType": "cliente", "restauranteId": donPepe, "nombre": "Pepe"})

	rep, err := f.auditor(Options{}).Run(ctx)
	require.ErrorIs(t, err, ErrRegression)
	assert.Equal(t, model.OutcomeFailed, item(t, rep, customerForm).Outcome)

	reg := rep.Regressions()
	require.Len(t, reg, 1)
	assert.Equal(t, KindCount{TenantID: donPepe, Kind: model.KindCustomer, Legacy: 1, Current: 0, Total: 1}, reg[0])
}

func TestRun_ProfileDocumentAtSlugStillResolvesBySlug(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.legacy(t, "clients/donpepe", store.Fields{"nombre": "Don Pepe", "telefono": "600111222"})
	const src = "clients/donpepe/Formularios/1700000000000_cliente_600999888"
	f.legacy(t, src, store.Fields{"nombre": "Marta"})

	rep, err := f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)

	it := item(t, rep, src)
	assert.Equal(t, model.OutcomeCreated, it.Outcome)
	assert.Equal(t, donPepe, it.TenantID)
	_, err = f.repo.Get(ctx, donPepe, model.KindCustomer, util.StableID(donPepe, "1700000000000_cliente_600999888"))
	require.NoError(t, err)
}

func TestRun_ContactIDWithUnderscoreKeepsFormType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	const src = "clients/donpepe/Formularios/1700000000001_pedido_chat_9"
	f.legacy(t, src, store.Fields{"Pedido": "1 paella", "Total": "18"})

	rep, err := f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)

	it := item(t, rep, src)
	require.Equal(t, model.OutcomeCreated, it.Outcome, it.Detail)
	assert.Equal(t, model.KindOrder, it.Kind)

	e, err := f.repo.Get(ctx, donPepe, model.KindOrder, util.StableID(donPepe, "1700000000001_pedido_chat_9"))
	require.NoError(t, err)
	assert.Equal(t, "chat_9", e.(*model.Order).Contact)
}

func TestRun_InvalidAndInactiveAreFailedNotLost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.dir.Create(ctx, model.Tenant{ID: "rest_closed", DisplayName: "Closed", Slug: "closed", Active: true})
	require.NoError(t, err)
	_, err = f.dir.Deactivate(ctx, "rest_closed")
	require.NoError(t, err)

	f.legacy(t, "clients/closed/Formularios/1700000000000_cliente_chat1", store.Fields{"nombre": "Eva"})
	f.legacy(t, "clients/donpepe/Formularios/1700000000001_reserva_chat2", store.Fields{
		"nombre": "Luis", "personas": "dos", "fecha": "2024-12-24",
	})

	rep, err := f.auditor(Options{}).Run(ctx)
	require.NoError(t, err)

	closed := item(t, rep, "clients/closed/Formularios/1700000000000_cliente_chat1")
	assert.Equal(t, model.OutcomeFailed, closed.Outcome)
	assert.Contains(t, closed.Detail, model.ErrTenantInactive.Error())

	bad := item(t, rep, "clients/donpepe/Formularios/1700000000001_reserva_chat2")
	assert.Equal(t, model.OutcomeFailed, bad.Outcome)
	assert.Empty(t, rep.Counts)
}

func TestRun_NestedLayoutCrossTenantIDFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, err := f.dir.Create(ctx, model.Tenant{ID: "rest_other", DisplayName: "Other", Slug: "other", Active: true})
	require.NoError(t, err)

	f.legacy(t, "restaurantes/rest_donpepe_001/productos/p1", store.Fields{"name": "Paella", "price": 1800})
	f.legacy(t, "restaurantes/rest_other/productos/p1", store.Fields{"name": "Tortilla", "price": 900})

	rep, err := f.auditor(Options{Concurrency: 1}).Run(ctx)
	require.ErrorIs(t, err, ErrRegression)

	tally := rep.Tally()
	assert.Equal(t, 1, tally[model.OutcomeCreated])
	assert.Equal(t, 1, tally[model.OutcomeFailed])
	assert.Len(t, rep.Regressions(), 1)
}

type memArchive struct {
	mu    sync.Mutex
	items []model.MigrationItem
}

func (a *memArchive) InsertItems(_ context.Context, items []model.MigrationItem) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append(a.items, items...)
	return nil
}

func (a *memArchive) ListItems(_ context.Context, runID string, outcome model.Outcome, _, _ int) ([]model.MigrationItem, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.MigrationItem
	for _, it := range a.items {
		if it.RunID == runID && (outcome == "" || it.Outcome == outcome) {
			out = append(out, it)
		}
	}
	return out, nil
}

func TestRun_ArchivesReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	seedMixed(t, f)
	archive := &memArchive{}

	rep, err := f.auditor(Options{Archive: archive}).Run(ctx)
	require.NoError(t, err)

	got, err := archive.ListItems(ctx, rep.RunID, model.OutcomeQuarantined, 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, archive.items, 5)
}

func TestRun_CustomTenantFieldsAndLayout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.legacy(t, "clients/whatever/Forms/1700000000000_producto_x", store.Fields{
		"local": donPepe, "nombre": "Flan", "precio": "4,5",
	})

	rep, err := f.auditor(Options{
		Legacy:       layout.Legacy{FormsCollection: "Forms"},
		TenantFields: []string{"local"},
	}).Run(ctx)
	require.NoError(t, err)
	it := item(t, rep, "clients/whatever/Forms/1700000000000_producto_x")
	require.Equal(t, model.OutcomeCreated, it.Outcome)

	e, err := f.repo.Get(ctx, donPepe, model.KindProduct, util.StableID(donPepe, "1700000000000_producto_x"))
	require.NoError(t, err)
	assert.Equal(t, model.Money(450), e.(*model.Product).Price)
	assert.True(t, e.(*model.Product).Available)
}
