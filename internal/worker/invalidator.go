package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/jmehdipour/restaurant-crm/internal/kafka"
	"github.com/jmehdipour/restaurant-crm/internal/logger"
	"github.com/jmehdipour/restaurant-crm/internal/metrics"
	"github.com/jmehdipour/restaurant-crm/internal/model"
)

// Source delivers messages to a handler until ctx is cancelled.
// *kafka.Consumer implements it.
type Source interface {
	Run(ctx context.Context, h kafka.Handler) error
}

// Evictor drops cached tenant state.
type Evictor interface {
	Invalidate(ctx context.Context, tenantID string)
}

// CacheInvalidator consumes tenant change envelopes and evicts the tenant
// from the shared cache. The writing instance already evicts on update; this
// retries evictions that failed there, and otherwise the cache TTL bounds
// staleness.
type CacheInvalidator struct {
	Source  Source
	Tenants Evictor
	log     *zap.Logger
}

func NewCacheInvalidator(src Source, tenants Evictor) *CacheInvalidator {
	return &CacheInvalidator{
		Source:  src,
		Tenants: tenants,
		log:     logger.Named("cache-invalidator"),
	}
}

// Run blocks until ctx is cancelled.
func (w *CacheInvalidator) Run(ctx context.Context) error {
	if w.Source == nil || w.Tenants == nil {
		return errors.New("cache-invalidator: missing source or tenant directory")
	}
	return w.Source.Run(ctx, w.Handle)
}

// Handle evicts the tenant named by one envelope. Malformed envelopes are
// logged and acknowledged so they are not redelivered forever.
func (w *CacheInvalidator) Handle(ctx context.Context, m kafka.Message) error {
	var ev model.TenantChanged
	env, err := kafka.DecodeEnvelope(m.Value, &ev)
	if err != nil {
		w.log.Warn("bad envelope, skipping", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	id := ev.TenantID
	if id == "" {
		id = env.Tenant
	}
	if id == "" {
		w.log.Warn("envelope without tenant, skipping", zap.String("envelope", env.ID))
		return nil
	}

	w.Tenants.Invalidate(ctx, id)
	metrics.TenantCache.WithLabelValues("evict").Inc()
	w.log.Debug("tenant evicted", zap.String("tenant", id), zap.String("op", string(ev.Op)))
	return nil
}
