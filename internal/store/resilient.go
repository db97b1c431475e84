package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/restaurant-crm/internal/logger"
	"github.com/jmehdipour/restaurant-crm/internal/metrics"
)

var _ Store = (*Resilient)(nil)

// ErrCircuitOpen is returned while the breaker rejects calls. It wraps ErrTransient.
var ErrCircuitOpen = fmt.Errorf("%w: circuit open", ErrTransient)

// Policy configures the single retry policy of the store boundary.
type Policy struct {
	CallTimeout    time.Duration // per attempt
	MaxAttempts    int           // total attempts including the first
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	FailThreshold  int
	OpenFor        time.Duration
}

// Resilient decorates a Store with a per-call timeout, bounded exponential
// retry of ErrTransient failures and a circuit breaker. Every other error is
// returned on the first attempt.
type Resilient struct {
	next   Store
	policy Policy
	br     *MicroBreaker
}

func NewResilient(next Store, p Policy) *Resilient {
	if p.CallTimeout <= 0 {
		p.CallTimeout = 5 * time.Second
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 4
	}
	if p.BackoffInitial <= 0 {
		p.BackoffInitial = 100 * time.Millisecond
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = 2 * time.Second
	}
	return &Resilient{
		next:   next,
		policy: p,
		br:     NewMicroBreaker(p.FailThreshold, p.OpenFor),
	}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

func (r *Resilient) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.BackoffInitial
	b.MaxInterval = r.policy.BackoffMax
	b.MaxElapsedTime = 0
	bo := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)

	attempt := func() error {
		if !r.br.TryAcquire() {
			return backoff.Permanent(ErrCircuitOpen)
		}
		callCtx, cancel := context.WithTimeout(ctx, r.policy.CallTimeout)
		err := fn(callCtx)
		timedOut := callCtx.Err() != nil && ctx.Err() == nil
		cancel()

		if err != nil && timedOut && !IsTransient(err) {
			err = fmt.Errorf("%w: %s timed out after %s: %v", ErrTransient, op, r.policy.CallTimeout, err)
		}
		if IsTransient(err) {
			r.br.OnFailure()
			return err
		}
		r.br.OnSuccess()
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.StoreRetries.WithLabelValues(op).Inc()
		logger.Log.Debug("store call retry",
			zap.String("op", op), zap.Duration("wait", wait), zap.Error(err))
	}

	err := backoff.RetryNotify(attempt, bo, notify)
	metrics.StoreOps.WithLabelValues(op, outcomeOf(err)).Inc()
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "exists"
	case errors.Is(err, ErrPermissionDenied):
		return "denied"
	case IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}

func (r *Resilient) Get(ctx context.Context, path string) (Document, error) {
	var d Document
	err := r.do(ctx, "get", func(ctx context.Context) error {
		var err error
		d, err = r.next.Get(ctx, path)
		return err
	})
	return d, err
}

func (r *Resilient) Create(ctx context.Context, path string, fields Fields) error {
	return r.do(ctx, "create", func(ctx context.Context) error {
		return r.next.Create(ctx, path, fields)
	})
}

func (r *Resilient) Set(ctx context.Context, path string, fields Fields, merge bool) error {
	return r.do(ctx, "set", func(ctx context.Context) error {
		return r.next.Set(ctx, path, fields, merge)
	})
}

func (r *Resilient) Update(ctx context.Context, path string, fields Fields) error {
	return r.do(ctx, "update", func(ctx context.Context) error {
		return r.next.Update(ctx, path, fields)
	})
}

func (r *Resilient) Delete(ctx context.Context, path string) error {
	return r.do(ctx, "delete", func(ctx context.Context) error {
		return r.next.Delete(ctx, path)
	})
}

func (r *Resilient) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	var docs []Document
	err := r.do(ctx, "query", func(ctx context.Context) error {
		var err error
		docs, err = r.next.Query(ctx, collection, q)
		return err
	})
	return docs, err
}

func (r *Resilient) QueryGroup(ctx context.Context, collectionID string) ([]Document, error) {
	var docs []Document
	err := r.do(ctx, "query_group", func(ctx context.Context) error {
		var err error
		docs, err = r.next.QueryGroup(ctx, collectionID)
		return err
	})
	return docs, err
}

func (r *Resilient) Close() error { return r.next.Close() }
