package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/restaurant-crm/internal/layout"
	"github.com/jmehdipour/restaurant-crm/internal/logger"
	"github.com/jmehdipour/restaurant-crm/internal/metrics"
	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/store"
	"github.com/jmehdipour/restaurant-crm/internal/util"
)

// TenantGate is the part of the tenant directory the repository relies on.
type TenantGate interface {
	Require(ctx context.Context, id string) (model.Tenant, error)
}

// EventPublisher receives a notification after every successful write.
type EventPublisher interface {
	EntityChanged(ctx context.Context, ev model.EntityChanged) error
}

// ListQuery narrows List. Filters are equality only.
type ListQuery struct {
	Filters []store.Filter
	Newest  bool // order by createdAt, newest first
	Limit   int
}

// EntityRepository is the tenant-scoped CRUD surface over the document store.
// Every path it touches comes from the layout package; writes go to the
// owning tenant's collections and the global id claims only.
type EntityRepository struct {
	store   store.Store
	tenants TenantGate
	events  EventPublisher
	locks   *KeyedMutex
	now     func() time.Time
	newID   func() string
	log     *zap.Logger
}

type Option func(*EntityRepository)

func WithEvents(p EventPublisher) Option { return func(r *EntityRepository) { r.events = p } }

func WithClock(now func() time.Time) Option { return func(r *EntityRepository) { r.now = now } }

func NewEntityRepository(s store.Store, tenants TenantGate, opts ...Option) *EntityRepository {
	r := &EntityRepository{
		store:   s,
		tenants: tenants,
		locks:   NewKeyedMutex(),
		now:     time.Now,
		newID:   util.NewID,
		log:     logger.Named("entity-repository"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type normalizer interface{ Normalize() }

// Create stores a new entity under tenantID. A missing id is generated.
// An id held by another tenant fails with ErrTenantMismatch; an id already
// used in this tenant fails with ErrAlreadyExists.
func (r *EntityRepository) Create(ctx context.Context, tenantID string, e model.Entity) (model.Entity, error) {
	out, err := r.create(ctx, tenantID, e, false)
	r.count(e.Kind(), "create", err)
	return out, err
}

// Import is Create for records carried over from another layout: a non-zero
// createdAt is kept instead of being stamped.
func (r *EntityRepository) Import(ctx context.Context, tenantID string, e model.Entity) (model.Entity, error) {
	out, err := r.create(ctx, tenantID, e, true)
	r.count(e.Kind(), "import", err)
	return out, err
}

func (r *EntityRepository) create(ctx context.Context, tenantID string, e model.Entity, keepCreatedAt bool) (model.Entity, error) {
	kind := e.Kind()
	if _, err := r.tenants.Require(ctx, tenantID); err != nil {
		return nil, err
	}
	meta := e.Base()
	if meta.TenantID != "" && meta.TenantID != tenantID {
		return nil, fmt.Errorf("%s %s carries tenant %s, not %s: %w", kind, meta.ID, meta.TenantID, tenantID, model.ErrTenantMismatch)
	}
	meta.TenantID = tenantID
	if meta.ID == "" {
		meta.ID = r.newID()
	}
	if n, ok := e.(normalizer); ok {
		n.Normalize()
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	path, err := layout.ResolveCurrentPath(tenantID, kind, meta.ID)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(lockKey(tenantID, kind))
	defer unlock()

	claimed, err := r.claim(ctx, tenantID, kind, meta.ID)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	if !keepCreatedAt || meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	fields, err := store.Encode(e)
	if err != nil {
		return nil, err
	}
	if err := r.store.Create(ctx, path, fields); err != nil {
		if claimed && !errors.Is(err, model.ErrAlreadyExists) {
			r.release(ctx, tenantID, kind, meta.ID)
		}
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	r.publish(ctx, tenantID, kind, meta.ID, model.OpCreated)
	return e, nil
}

// claim reserves id for tenantID across all tenants. It reports whether this
// call created the claim; a claim already held by the same tenant is reused.
func (r *EntityRepository) claim(ctx context.Context, tenantID string, kind model.Kind, id string) (bool, error) {
	path, err := layout.ClaimPath(kind, id)
	if err != nil {
		return false, err
	}
	err = r.store.Create(ctx, path, store.Fields{
		"tenantId":  tenantID,
		"createdAt": store.FormatTime(r.now()),
	})
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, model.ErrAlreadyExists) {
		return false, fmt.Errorf("claim %s: %w", path, err)
	}

	doc, err := r.store.Get(ctx, path)
	if err != nil {
		return false, fmt.Errorf("read claim %s: %w", path, err)
	}
	if owner, _ := doc.Fields["tenantId"].(string); owner != tenantID {
		return false, fmt.Errorf("%s %s is owned by another tenant: %w", kind, id, model.ErrTenantMismatch)
	}
	return false, nil
}

// release drops the claim on id if tenantID owns it.
func (r *EntityRepository) release(ctx context.Context, tenantID string, kind model.Kind, id string) {
	path, err := layout.ClaimPath(kind, id)
	if err != nil {
		return
	}
	doc, err := r.store.Get(ctx, path)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			r.log.Warn("read claim", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if owner, _ := doc.Fields["tenantId"].(string); owner != tenantID {
		return
	}
	if err := r.store.Delete(ctx, path); err != nil {
		r.log.Warn("release claim", zap.String("path", path), zap.Error(err))
	}
}

// Get returns ErrNotFound when the entity does not exist in tenantID.
func (r *EntityRepository) Get(ctx context.Context, tenantID string, kind model.Kind, id string) (model.Entity, error) {
	e, err := r.get(ctx, tenantID, kind, id)
	r.count(kind, "get", err)
	return e, err
}

func (r *EntityRepository) get(ctx context.Context, tenantID string, kind model.Kind, id string) (model.Entity, error) {
	path, err := layout.ResolveCurrentPath(tenantID, kind, id)
	if err != nil {
		if errors.Is(err, store.ErrInvalidPath) {
			return nil, fmt.Errorf("%s %q: %w", kind, id, model.ErrNotFound)
		}
		return nil, err
	}
	doc, err := r.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return decode(kind, tenantID, doc)
}

// GetDocument returns the stored fields of an entity as written.
func (r *EntityRepository) GetDocument(ctx context.Context, tenantID string, kind model.Kind, id string) (store.Document, error) {
	path, err := layout.ResolveCurrentPath(tenantID, kind, id)
	if err != nil {
		return store.Document{}, err
	}
	return r.store.Get(ctx, path)
}

// Update merges patch into the stored entity, last write wins. id, tenantId
// and createdAt cannot change; updatedAt is always stamped.
func (r *EntityRepository) Update(ctx context.Context, tenantID string, kind model.Kind, id string, patch store.Fields) (model.Entity, error) {
	e, err := r.update(ctx, tenantID, kind, id, patch)
	r.count(kind, "update", err)
	return e, err
}

func (r *EntityRepository) update(ctx context.Context, tenantID string, kind model.Kind, id string, patch store.Fields) (model.Entity, error) {
	if err := checkPatch(kind, patch); err != nil {
		return nil, err
	}
	if _, err := r.tenants.Require(ctx, tenantID); err != nil {
		return nil, err
	}
	path, err := layout.ResolveCurrentPath(tenantID, kind, id)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(lockKey(tenantID, kind))
	defer unlock()

	doc, err := r.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	merged := doc.Fields.Clone()
	for k, v := range patch {
		merged[k] = v
	}
	e, err := decode(kind, tenantID, store.Document{Path: path, Fields: merged})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalid, err)
	}
	if n, ok := e.(normalizer); ok {
		n.Normalize()
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.Base().UpdatedAt = r.now().UTC()

	fields, err := store.Encode(e)
	if err != nil {
		return nil, err
	}
	if err := r.store.Set(ctx, path, fields, false); err != nil {
		return nil, fmt.Errorf("update %s: %w", path, err)
	}

	r.publish(ctx, tenantID, kind, id, model.OpUpdated)
	return e, nil
}

// Delete removes the entity and its id claim. Deleting a missing entity is
// not an error.
func (r *EntityRepository) Delete(ctx context.Context, tenantID string, kind model.Kind, id string) error {
	err := r.delete(ctx, tenantID, kind, id)
	r.count(kind, "delete", err)
	return err
}

func (r *EntityRepository) delete(ctx context.Context, tenantID string, kind model.Kind, id string) error {
	if _, err := r.tenants.Require(ctx, tenantID); err != nil {
		return err
	}
	path, err := layout.ResolveCurrentPath(tenantID, kind, id)
	if err != nil {
		return err
	}

	unlock := r.locks.Lock(lockKey(tenantID, kind))
	defer unlock()

	_, err = r.store.Get(ctx, path)
	existed := err == nil
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	if existed {
		if err := r.store.Delete(ctx, path); err != nil {
			return fmt.Errorf("delete %s: %w", path, err)
		}
	}
	r.release(ctx, tenantID, kind, id)

	if existed {
		r.publish(ctx, tenantID, kind, id, model.OpDeleted)
	}
	return nil
}

// List returns the entities of kind in tenantID; an empty collection yields
// an empty slice.
func (r *EntityRepository) List(ctx context.Context, tenantID string, kind model.Kind, q ListQuery) ([]model.Entity, error) {
	out, err := r.list(ctx, tenantID, kind, q)
	r.count(kind, "list", err)
	return out, err
}

func (r *EntityRepository) list(ctx context.Context, tenantID string, kind model.Kind, q ListQuery) ([]model.Entity, error) {
	coll, err := layout.CollectionPath(tenantID, kind)
	if err != nil {
		return nil, err
	}
	sq := store.Query{Where: q.Filters, Limit: q.Limit}
	if q.Newest {
		sq.OrderBy, sq.Desc = "createdAt", true
	}
	docs, err := r.store.Query(ctx, coll, sq)
	if err != nil {
		return nil, err
	}
	out := make([]model.Entity, 0, len(docs))
	for _, d := range docs {
		e, err := decode(kind, tenantID, d)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Count returns the number of kind documents stored for tenantID.
func (r *EntityRepository) Count(ctx context.Context, tenantID string, kind model.Kind) (int, error) {
	coll, err := layout.CollectionPath(tenantID, kind)
	if err != nil {
		return 0, err
	}
	docs, err := r.store.Query(ctx, coll, store.Query{})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func decode(kind model.Kind, tenantID string, doc store.Document) (model.Entity, error) {
	e, err := model.New(kind)
	if err != nil {
		return nil, err
	}
	if err := store.Decode(doc.Fields, e); err != nil {
		return nil, fmt.Errorf("%s: %w", doc.Path, err)
	}
	meta := e.Base()
	if meta.TenantID != tenantID {
		return nil, fmt.Errorf("%s holds tenant %q: %w", doc.Path, meta.TenantID, model.ErrTenantMismatch)
	}
	meta.ID = doc.ID()
	return e, nil
}

func (r *EntityRepository) publish(ctx context.Context, tenantID string, kind model.Kind, id string, op model.ChangeOp) {
	if r.events == nil {
		return
	}
	ev := model.EntityChanged{TenantID: tenantID, Kind: kind, ID: id, Op: op}
	if err := r.events.EntityChanged(ctx, ev); err != nil {
		r.log.Warn("publish entity event failed",
			zap.String("tenant", tenantID), zap.String("kind", kind.String()), zap.String("id", id), zap.Error(err))
	}
}

func (r *EntityRepository) count(kind model.Kind, op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, model.ErrTenantMismatch):
		outcome = "tenant_mismatch"
	case errors.Is(err, model.ErrTenantInactive):
		outcome = "tenant_inactive"
	case errors.Is(err, model.ErrAlreadyExists):
		outcome = "exists"
	case errors.Is(err, model.ErrInvalid):
		outcome = "invalid"
	case errors.Is(err, model.ErrTransient):
		outcome = "transient"
	default:
		outcome = "error"
	}
	metrics.RepositoryOps.WithLabelValues(kind.String(), op, outcome).Inc()
}

func lockKey(tenantID string, kind model.Kind) string {
	return tenantID + "/" + string(kind)
}
