package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/store"
	"github.com/jmehdipour/restaurant-crm/internal/tenant"
)

const donPepe = "rest_donpepe_001"

type recordedEvents struct {
	mu  sync.Mutex
	got []model.EntityChanged
}

func (r *recordedEvents) EntityChanged(_ context.Context, ev model.EntityChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return nil
}

func (r *recordedEvents) ops() []model.ChangeOp {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ChangeOp, len(r.got))
	for i, ev := range r.got {
		out[i] = ev.Op
	}
	return out
}

type fixture struct {
	store   *store.Memory
	tenants *tenant.Directory
	repo    *EntityRepository
	events  *recordedEvents
}

func newFixture(t *testing.T, tenantIDs ...string) fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	dir := tenant.NewDirectory(mem)
	for i, id := range tenantIDs {
		_, err := dir.Create(ctx, model.Tenant{
			ID:          id,
			DisplayName: id,
			Slug:        fmt.Sprintf("tenant-%d", i),
			Active:      true,
		})
		require.NoError(t, err)
	}
	ev := &recordedEvents{}
	return fixture{store: mem, tenants: dir, repo: NewEntityRepository(mem, dir, WithEvents(ev)), events: ev}
}

func TestScenarioA_CustomerLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, donPepe)

	_, err := f.repo.Create(ctx, donPepe, &model.Customer{
		Meta: model.Meta{ID: "c1", TenantID: donPepe},
		Name: "Juan Pérez",
	})
	require.NoError(t, err)

	got, err := f.repo.Get(ctx, donPepe, model.KindCustomer, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Juan Pérez", got.(*model.Customer).Name)

	_, err = f.repo.Update(ctx, donPepe, model.KindCustomer, "c1", store.Fields{"name": "Juan Pérez Jr."})
	require.NoError(t, err)

	got, err = f.repo.Get(ctx, donPepe, model.KindCustomer, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Juan Pérez Jr.", got.(*model.Customer).Name)

	require.NoError(t, f.repo.Delete(ctx, donPepe, model.KindCustomer, "c1"))
	_, err = f.repo.Get(ctx, donPepe, model.KindCustomer, "c1")
	require.ErrorIs(t, err, model.ErrNotFound)

	assert.Equal(t, []model.ChangeOp{model.OpCreated, model.OpUpdated, model.OpDeleted}, f.events.ops())
}

func TestScenarioD_ConcurrentCrossTenantCreate(t *testing.T) {
	for round := 0; round < 20; round++ {
		ctx := context.Background()
		f := newFixture(t, "t1", "t2")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, tn := range []string{"t1", "t2"} {
			wg.Add(1)
			go func(i int, tn string) {
				defer wg.Done()
				_, errs[i] = f.repo.Create(ctx, tn, &model.Customer{Meta: model.Meta{ID: "shared"}, Name: "X"})
			}(i, tn)
		}
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, model.ErrTenantMismatch)
				failed++
			}
		}
		require.Equal(t, 1, failed, "exactly one create must lose")
	}
}

func TestScenarioD_SequentialCrossTenantCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1", "t2")

	_, err := f.repo.Create(ctx, "t1", &model.Customer{Meta: model.Meta{ID: "c1"}, Name: "A"})
	require.NoError(t, err)
	_, err = f.repo.Create(ctx, "t2", &model.Customer{Meta: model.Meta{ID: "c1"}, Name: "B"})
	require.ErrorIs(t, err, model.ErrTenantMismatch)

	_, err = f.repo.Get(ctx, "t2", model.KindCustomer, "c1")
	require.ErrorIs(t, err, model.ErrNotFound)

	// t2 deleting the id must not free t1's claim
	require.NoError(t, f.repo.Delete(ctx, "t2", model.KindCustomer, "c1"))
	_, err = f.repo.Create(ctx, "t2", &model.Customer{Meta: model.Meta{ID: "c1"}, Name: "B"})
	require.ErrorIs(t, err, model.ErrTenantMismatch)

	// once t1 deletes it, the id is free again
	require.NoError(t, f.repo.Delete(ctx, "t1", model.KindCustomer, "c1"))
	_, err = f.repo.Create(ctx, "t2", &model.Customer{Meta: model.Meta{ID: "c1"}, Name: "B"})
	require.NoError(t, err)
}

func TestCreate_Rules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1", "t2")

	_, err := f.repo.Create(ctx, "t1", &model.Customer{Meta: model.Meta{TenantID: "t2"}, Name: "X"})
	require.ErrorIs(t, err, model.ErrTenantMismatch)

	_, err = f.repo.Create(ctx, "nobody", &model.Customer{Name: "X"})
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.repo.Create(ctx, "t1", &model.Customer{})
	require.ErrorIs(t, err, model.ErrInvalid)

	e, err := f.repo.Create(ctx, "t1", &model.Customer{Name: "X"})
	require.NoError(t, err)
	assert.Len(t, e.Base().ID, 26, "generated ULID")
	assert.Equal(t, "t1", e.Base().TenantID)

	_, err = f.repo.Create(ctx, "t1", &model.Customer{Meta: model.Meta{ID: e.Base().ID}, Name: "Y"})
	require.ErrorIs(t, err, model.ErrAlreadyExists)

	_, err = f.repo.Create(ctx, "t1", &model.Customer{Meta: model.Meta{ID: "a/b"}, Name: "Y"})
	require.ErrorIs(t, err, store.ErrInvalidPath)
}

func TestInactiveTenantRejectsWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1")
	_, err := f.repo.Create(ctx, "t1", &model.Product{Meta: model.Meta{ID: "p1"}, Name: "Paella", Price: 1450})
	require.NoError(t, err)

	_, err = f.tenants.Deactivate(ctx, "t1")
	require.NoError(t, err)

	_, err = f.repo.Create(ctx, "t1", &model.Product{Name: "Tortilla"})
	require.ErrorIs(t, err, model.ErrTenantInactive)
	_, err = f.repo.Update(ctx, "t1", model.KindProduct, "p1", store.Fields{"price": 1500})
	require.ErrorIs(t, err, model.ErrTenantInactive)
	require.ErrorIs(t, f.repo.Delete(ctx, "t1", model.KindProduct, "p1"), model.ErrTenantInactive)

	// reads still work
	p, err := f.repo.Get(ctx, "t1", model.KindProduct, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.Money(1450), p.(*model.Product).Price)
}

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1")
	requested := time.Date(2024, 6, 1, 21, 30, 0, 0, time.UTC)
	reconfirmed := requested.Add(-2 * time.Hour)

	entities := []model.Entity{
		&model.Customer{Meta: model.Meta{ID: "c1"}, Name: "Ana", Email: "ana@example.com", Phone: "+34600111222", Labels: []string{"vip", "alergias"}, Tier: model.TierVIP},
		&model.Order{Meta: model.Meta{ID: "o1"}, Contact: "chat1", CustomerName: "Ana", OrderType: model.OrderDelivery, Summary: "2x paella", DeliveryAddress: "Calle Mayor 1", Status: model.OrderAccepted, Total: 3250},
		&model.Reservation{Meta: model.Meta{ID: "r1"}, Contact: "chat1", CustomerName: "Ana", PartySize: 4, RequestedAt: requested, Status: model.ReservationPending, Notes: "terraza", ReconfirmedAt: &reconfirmed},
		&model.Product{Meta: model.Meta{ID: "p1"}, Name: "Paella", Price: 1450, Category: "arroces", Available: true},
	}
	for _, e := range entities {
		t.Run(string(e.Kind()), func(t *testing.T) {
			created, err := f.repo.Create(ctx, "t1", e)
			require.NoError(t, err)

			got, err := f.repo.Get(ctx, "t1", e.Kind(), e.Base().ID)
			require.NoError(t, err)

			want, _ := store.Encode(created)
			have, _ := store.Encode(got)
			for _, ts := range []string{"createdAt", "updatedAt"} {
				assert.NotEmpty(t, have[ts])
				delete(want, ts)
				delete(have, ts)
			}
			assert.Equal(t, want, have)
		})
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1")
	_, err := f.repo.Create(ctx, "t1", &model.Customer{Meta: model.Meta{ID: "c1"}, Name: "X"})
	require.NoError(t, err)

	require.NoError(t, f.repo.Delete(ctx, "t1", model.KindCustomer, "c1"))
	before := f.store.Len()
	require.NoError(t, f.repo.Delete(ctx, "t1", model.KindCustomer, "c1"))
	assert.Equal(t, before, f.store.Len())
	require.NoError(t, f.repo.Delete(ctx, "t1", model.KindCustomer, "never-existed"))

	assert.Equal(t, []model.ChangeOp{model.OpCreated, model.OpDeleted}, f.events.ops())
}

func TestListSizeMatchesCreatesMinusDeletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1", "t2")

	list, err := f.repo.List(ctx, "t1", model.KindOrder, ListQuery{})
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	var ids []string
	for i := 0; i < 7; i++ {
		e, err := f.repo.Create(ctx, "t1", &model.Order{Contact: "c", OrderType: model.OrderPickup})
		require.NoError(t, err)
		ids = append(ids, e.Base().ID)
	}
	_, err = f.repo.Create(ctx, "t2", &model.Order{Contact: "c", OrderType: model.OrderPickup})
	require.NoError(t, err)
	for _, id := range ids[:3] {
		require.NoError(t, f.repo.Delete(ctx, "t1", model.KindOrder, id))
	}

	list, err = f.repo.List(ctx, "t1", model.KindOrder, ListQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 4)

	n, err := f.repo.Count(ctx, "t1", model.KindOrder)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1")
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f.repo.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for i, st := range []model.OrderStatus{model.OrderPending, model.OrderAccepted, model.OrderPending, model.OrderPending} {
		_, err := f.repo.Create(ctx, "t1", &model.Order{
			Meta:      model.Meta{ID: fmt.Sprintf("o%d", i)},
			Contact:   "c",
			OrderType: model.OrderPickup,
			Status:    st,
		})
		require.NoError(t, err)
	}

	flt, err := ParseFilter(model.KindOrder, "status", "pending")
	require.NoError(t, err)
	list, err := f.repo.List(ctx, "t1", model.KindOrder, ListQuery{Filters: []store.Filter{flt}, Newest: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o3", list[0].Base().ID)
	assert.Equal(t, "o2", list[1].Base().ID)
}

func TestUpdate_Rules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1")
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.repo.now = func() time.Time { return t0 }

	_, err := f.repo.Create(ctx, "t1", &model.Reservation{
		Meta: model.Meta{ID: "r1"}, Contact: "c", PartySize: 2, RequestedAt: t0.Add(48 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.repo.Update(ctx, "t1", model.KindReservation, "missing", store.Fields{"partySize": 3})
	require.ErrorIs(t, err, model.ErrNotFound)

	for _, patch := range []store.Fields{
		{},
		{"tenantId": "t2"},
		{"id": "r2"},
		{"createdAt": "2020-01-01T00:00:00Z"},
		{"tableNumber": 4},
		{"partySize": 0},
		{"partySize": "many"},
		{"status": "seated"},
	} {
		_, err := f.repo.Update(ctx, "t1", model.KindReservation, "r1", patch)
		require.ErrorIs(t, err, model.ErrInvalid, "%v", patch)
	}

	f.repo.now = func() time.Time { return t0.Add(time.Hour) }
	e, err := f.repo.Update(ctx, "t1", model.KindReservation, "r1", store.Fields{
		"partySize":     6,
		"status":        "accepted",
		"reconfirmedAt": "2024-01-02T10:00:00Z",
	})
	require.NoError(t, err)
	r := e.(*model.Reservation)
	assert.Equal(t, 6, r.PartySize)
	assert.Equal(t, model.ReservationAccepted, r.Status)
	assert.Equal(t, t0, r.CreatedAt)
	assert.Equal(t, t0.Add(time.Hour), r.UpdatedAt)
	require.NotNil(t, r.ReconfirmedAt)

	got, err := f.repo.Get(ctx, "t1", model.KindReservation, "r1")
	require.NoError(t, err)
	assert.Equal(t, "c", got.(*model.Reservation).Contact)
	assert.Equal(t, t0.Add(time.Hour), got.Base().UpdatedAt)
}

func TestImportKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1")
	legacy := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	e, err := f.repo.Import(ctx, "t1", &model.Customer{Meta: model.Meta{ID: "c1", CreatedAt: legacy}, Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, legacy, e.Base().CreatedAt)
	assert.True(t, e.Base().UpdatedAt.After(legacy))
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "t1", "t2")
	_, err := f.repo.Create(ctx, "t1", &model.Product{Meta: model.Meta{ID: "p1"}, Name: "Paella"})
	require.NoError(t, err)

	list, err := f.repo.List(ctx, "t2", model.KindProduct, ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = f.repo.Get(ctx, "t2", model.KindProduct, "p1")
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.repo.Update(ctx, "t2", model.KindProduct, "p1", store.Fields{"name": "Hijacked"})
	require.ErrorIs(t, err, model.ErrNotFound)

	// a document planted under the wrong tenant path is refused on read
	require.NoError(t, f.store.Set(ctx, "clients/t2/productos/p9", store.Fields{"id": "p9", "tenantId": "t1", "name": "x"}, false))
	_, err = f.repo.Get(ctx, "t2", model.KindProduct, "p9")
	require.ErrorIs(t, err, model.ErrTenantMismatch)
}
