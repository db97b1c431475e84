// Package tenant is the single source of truth for which tenants exist and
// whether they accept writes.
package tenant

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
)

// Publisher receives tenant change events.
type Publisher interface {
	TenantChanged(ctx context.Context, ev model.TenantChanged) error
}

type Directory struct {
	store  store.Store
	cache  Cache
	events Publisher
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Directory)

func WithCache(c Cache) Option { return func(d *Directory) { d.cache = c } }

func WithEvents(p Publisher) Option { return func(d *Directory) { d.events = p } }

func NewDirectory(s store.Store, opts ...Option) *Directory {
	d := &Directory{
		store: s,
		cache: NopCache{},
		now:   time.Now,
		log:   logger.Named("tenant-directory"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// List returns every tenant ordered by id, as stored at call time. The cache
// is not consulted.
func (d *Directory) List(ctx context.Context) ([]model.Tenant, error) {
	docs, err := d.store.Query(ctx, layout.TenantsRoot, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	out := make([]model.Tenant, 0, len(docs))
	for _, doc := range docs {
		t, err := decodeTenant(doc)
		if err != nil {
			d.log.Warn("skipping malformed tenant document", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Get returns the tenant or ErrNotFound.
func (d *Directory) Get(ctx context.Context, id string) (model.Tenant, error) {
	if t, ok, err := d.cache.Get(ctx, id); err != nil {
		metrics.TenantCache.WithLabelValues("error").Inc()
		d.log.Warn("tenant cache read failed", zap.String("tenant", id), zap.Error(err))
	} else if ok {
		metrics.TenantCache.WithLabelValues("hit").Inc()
		return t, nil
	} else {
		metrics.TenantCache.WithLabelValues("miss").Inc()
	}

	t, err := d.load(ctx, id)
	if err != nil {
		return model.Tenant{}, err
	}
	if err := d.cache.Set(ctx, t); err != nil {
		d.log.Warn("tenant cache write failed", zap.String("tenant", id), zap.Error(err))
	}
	return t, nil
}

func (d *Directory) load(ctx context.Context, id string) (model.Tenant, error) {
	path, err := layout.TenantPath(id)
	if err != nil {
		return model.Tenant{}, fmt.Errorf("tenant %q: %w", id, model.ErrNotFound)
	}
	doc, err := d.store.Get(ctx, path)
	if err != nil {
		return model.Tenant{}, fmt.Errorf("tenant %s: %w", id, err)
	}
	return decodeTenant(doc)
}

// IsActive reports false for unknown tenants and on lookup failures.
func (d *Directory) IsActive(ctx context.Context, id string) bool {
	t, err := d.Get(ctx, id)
	return err == nil && t.Active
}

// Require fails with ErrNotFound or ErrTenantInactive unless the tenant
// accepts writes.
func (d *Directory) Require(ctx context.Context, id string) (model.Tenant, error) {
	t, err := d.Get(ctx, id)
	if err != nil {
		return model.Tenant{}, err
	}
	if !t.Active {
		return model.Tenant{}, fmt.Errorf("tenant %s: %w", id, model.ErrTenantInactive)
	}
	return t, nil
}

// GetBySlug resolves a tenant from its slug.
func (d *Directory) GetBySlug(ctx context.Context, slug string) (model.Tenant, error) {
	path, err := layout.SlugPath(slug)
	if err != nil {
		return model.Tenant{}, fmt.Errorf("slug %q: %w", slug, model.ErrNotFound)
	}
	doc, err := d.store.Get(ctx, path)
	if err != nil {
		return model.Tenant{}, fmt.Errorf("slug %s: %w", slug, err)
	}
	id, _ := doc.Fields["tenantId"].(string)
	return d.Get(ctx, id)
}

// Resolve accepts either a tenant id or a slug. A document at the id
// address that is not a tenant (a legacy business profile) falls through to
// the slug lookup as well.
func (d *Directory) Resolve(ctx context.Context, ref string) (model.Tenant, error) {
	t, err := d.Get(ctx, ref)
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalid) {
		return d.GetBySlug(ctx, ref)
	}
	return t, err
}

// Create registers a new tenant. Both the id and the slug must be unused.
func (d *Directory) Create(ctx context.Context, t model.Tenant) (model.Tenant, error) {
	if err := t.Validate(); err != nil {
		return model.Tenant{}, err
	}
	now := d.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	slugPath, _ := layout.SlugPath(t.Slug)
	if err := d.store.Create(ctx, slugPath, store.Fields{"tenantId": t.ID}); err != nil {
		return model.Tenant{}, fmt.Errorf("claim slug %s: %w", t.Slug, err)
	}
	fields, err := store.Encode(t)
	if err != nil {
		return model.Tenant{}, err
	}
	path, _ := layout.TenantPath(t.ID)
	if err := d.store.Create(ctx, path, fields); err != nil {
		if delErr := d.store.Delete(ctx, slugPath); delErr != nil {
			d.log.Error("release slug claim", zap.String("slug", t.Slug), zap.Error(delErr))
		}
		return model.Tenant{}, fmt.Errorf("create tenant %s: %w", t.ID, err)
	}

	d.log.Info("tenant created", zap.String("tenant", t.ID), zap.String("slug", t.Slug))
	d.publish(ctx, t.ID, model.OpCreated)
	return t, nil
}

// Update applies p. The slug and id never change.
func (d *Directory) Update(ctx context.Context, id string, p model.TenantPatch) (model.Tenant, error) {
	return d.update(ctx, id, p, model.OpUpdated)
}

// Deactivate is the soft delete; tenants are never removed.
func (d *Directory) Deactivate(ctx context.Context, id string) (model.Tenant, error) {
	off := false
	return d.update(ctx, id, model.TenantPatch{Active: &off}, model.OpDeactivated)
}

func (d *Directory) update(ctx context.Context, id string, p model.TenantPatch, op model.ChangeOp) (model.Tenant, error) {
	t, err := d.load(ctx, id)
	if err != nil {
		return model.Tenant{}, err
	}
	t.Apply(p)
	if err := t.Validate(); err != nil {
		return model.Tenant{}, err
	}
	t.UpdatedAt = d.now().UTC()

	fields, err := store.Encode(t)
	if err != nil {
		return model.Tenant{}, err
	}
	path, _ := layout.TenantPath(id)
	if err := d.store.Update(ctx, path, fields); err != nil {
		return model.Tenant{}, fmt.Errorf("update tenant %s: %w", id, err)
	}

	d.Invalidate(ctx, id)
	d.publish(ctx, id, op)
	return t, nil
}

// Invalidate drops the cached copy of a tenant.
func (d *Directory) Invalidate(ctx context.Context, id string) {
	if err := d.cache.Delete(ctx, id); err != nil {
		d.log.Warn("tenant cache invalidation failed", zap.String("tenant", id), zap.Error(err))
	}
}

func (d *Directory) publish(ctx context.Context, id string, op model.ChangeOp) {
	if d.events == nil {
		return
	}
	if err := d.events.TenantChanged(ctx, model.TenantChanged{TenantID: id, Op: op}); err != nil {
		d.log.Warn("publish tenant event failed", zap.String("tenant", id), zap.Error(err))
	}
}

func decodeTenant(doc store.Document) (model.Tenant, error) {
	var t model.Tenant
	if err := store.Decode(doc.Fields, &t); err != nil {
		return model.Tenant{}, fmt.Errorf("%w: %v", model.ErrInvalid, err)
	}
	t.ID = doc.ID()
	if err := t.Validate(); err != nil {
		return model.Tenant{}, fmt.Errorf("tenant %s: %w", t.ID, err)
	}
	return t, nil
}
