// Package migration moves legacy tenant data into the current layout and
// proves that nothing was lost on the way.
package migration

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmehdipour/restaurant-crm/internal/layout"
	"github.com/jmehdipour/restaurant-crm/internal/logger"
	"github.com/jmehdipour/restaurant-crm/internal/metrics"
	"github.com/jmehdipour/restaurant-crm/internal/model"
	"github.com/jmehdipour/restaurant-crm/internal/repository"
	"github.com/jmehdipour/restaurant-crm/internal/store"
	"github.com/jmehdipour/restaurant-crm/internal/util"
)

// ErrRegression means a tenant holds fewer current documents of a kind than
// its legacy documents map to.
var ErrRegression = errors.New("migration count regression")

// Directory resolves tenant references found in legacy data.
type Directory interface {
	Resolve(ctx context.Context, ref string) (model.Tenant, error)
}

// Repository is the write side used for the current layout.
type Repository interface {
	GetDocument(ctx context.Context, tenantID string, kind model.Kind, id string) (store.Document, error)
	Import(ctx context.Context, tenantID string, e model.Entity) (model.Entity, error)
	Update(ctx context.Context, tenantID string, kind model.Kind, id string, patch store.Fields) (model.Entity, error)
	Count(ctx context.Context, tenantID string, kind model.Kind) (int, error)
}

type Options struct {
	Legacy layout.Legacy
	// TenantFields are checked in order for an explicit tenant reference
	// (id or slug) before the path is used.
	TenantFields       []string
	Concurrency        int
	DryRun             bool
	DefaultCountryCode string
	Archive            repository.MigrationArchive
}

// DefaultTenantFields are the legacy fields known to carry a tenant reference.
var DefaultTenantFields = []string{"restauranteId", "tenantId", "businessId"}

type Auditor struct {
	store   store.Store
	tenants Directory
	repo    Repository
	opts    Options
	conv    converter
	log     *zap.Logger
	now     func() time.Time
}

func NewAuditor(s store.Store, tenants Directory, repo Repository, opts Options) *Auditor {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if len(opts.TenantFields) == 0 {
		opts.TenantFields = DefaultTenantFields
	}
	return &Auditor{
		store:   s,
		tenants: tenants,
		repo:    repo,
		opts:    opts,
		conv:    converter{defaultCC: opts.DefaultCountryCode},
		log:     logger.Named("migration"),
		now:     time.Now,
	}
}

// candidate is one legacy document on its way through a run.
type candidate struct {
	doc    store.Document
	addr   layout.Address
	key    layout.LegacyKey
	keyErr error
	entity model.Entity
	item   model.MigrationItem
}

func (c *candidate) finish(o model.Outcome, detail string, args ...any) {
	c.item.Outcome = o
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	c.item.Detail = detail
}

// Run executes Scan, Classify, GroupByTenant, WriteCurrent and Verify. A
// failing document is recorded and skipped; the run fails only on a scan
// error, cancellation or a count regression. The report is returned whenever
// the scan succeeded.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	rep := &Report{RunID: util.NewID(), DryRun: a.opts.DryRun, StartedAt: a.now().UTC()}
	log := a.log.With(zap.String("run", rep.RunID), zap.Bool("dry_run", rep.DryRun))

	docs, err := a.scan(ctx)
	if err != nil {
		metrics.MigrationRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("scan legacy documents: %w", err)
	}
	rep.Scanned = len(docs)
	log.Info("legacy documents scanned", zap.Int("count", len(docs)))

	var all []*candidate
	groups := make(map[string][]*candidate)
	for _, c := range docs {
		all = append(all, c)
		if !a.classify(c) {
			continue
		}
		if !a.assignTenant(ctx, c) {
			continue
		}
		groups[c.item.TenantID] = append(groups[c.item.TenantID], c)
	}

	runErr := a.writeCurrent(ctx, groups)
	if runErr == nil {
		rep.Counts, runErr = a.verify(ctx, groups)
	}

	for _, c := range all {
		if c.item.Outcome == "" {
			c.finish(model.OutcomeFailed, "not processed: %v", runErr)
		}
		c.item.RunID, c.item.StartedAt = rep.RunID, rep.StartedAt
		rep.Items = append(rep.Items, c.item)
		metrics.MigrationDocuments.WithLabelValues(string(c.item.Outcome), string(c.item.Kind)).Inc()
		if c.item.Outcome == model.OutcomeFailed {
			log.Warn("legacy document failed",
				zap.String("path", c.item.SourcePath), zap.String("detail", c.item.Detail))
		}
	}
	rep.sort()
	rep.FinishedAt = a.now().UTC()

	if a.opts.Archive != nil {
		if err := a.opts.Archive.InsertItems(ctx, rep.Items); err != nil {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("archive report: %v", err))
			log.Warn("archive migration report", zap.Error(err))
		}
	}

	if runErr != nil {
		metrics.MigrationRuns.WithLabelValues("error").Inc()
		return rep, runErr
	}
	if reg := rep.Regressions(); len(reg) > 0 {
		metrics.MigrationRuns.WithLabelValues("regression").Inc()
		for _, r := range reg {
			log.Error("count regression",
				zap.String("tenant", r.TenantID), zap.String("kind", string(r.Kind)),
				zap.Int("legacy", r.Legacy), zap.Int("current", r.Current))
		}
		return rep, fmt.Errorf("%w: %d tenant kinds short", ErrRegression, len(reg))
	}
	metrics.MigrationRuns.WithLabelValues("ok").Inc()
	log.Info("migration finished", zap.Any("outcomes", rep.Tally()))
	return rep, nil
}

// scan collects legacy form documents and documents of the nested layout.
func (a *Auditor) scan(ctx context.Context) ([]*candidate, error) {
	var out []*candidate
	add := func(docs []store.Document, shape layout.Shape) {
		for _, d := range docs {
			addr, err := a.opts.Legacy.ParseAddress(d.Path)
			if err != nil || addr.Shape != shape {
				continue
			}
			out = append(out, &candidate{
				doc:  d,
				addr: addr,
				item: model.MigrationItem{SourcePath: d.Path, Kind: addr.Kind},
			})
		}
	}

	forms, err := a.store.QueryGroup(ctx, a.opts.Legacy.FormsCollectionID())
	if err != nil {
		return nil, err
	}
	add(forms, layout.ShapeLegacyForm)

	for _, k := range model.Kinds {
		plural, _ := layout.Plural(k)
		docs, err := a.store.QueryGroup(ctx, plural)
		if err != nil {
			return nil, err
		}
		add(docs, layout.ShapeLegacyNested)
	}
	return out, nil
}

// classify decodes c into an entity. It returns false when c is finished.
func (a *Auditor) classify(c *candidate) bool {
	var e model.Entity

	switch c.addr.Shape {
	case layout.ShapeLegacyForm:
		c.key, c.keyErr = layout.ParseLegacyKey(c.addr.DocID)
		if c.keyErr == nil {
			c.key = SplitKeyFormType(c.key)
		}
		formType, _ := c.doc.Fields["formType"].(string)
		if strings.TrimSpace(formType) == "" && c.keyErr == nil {
			formType = c.key.FormType
		}
		form, err := DecodeForm(formType, c.doc.Fields)
		if err != nil {
			c.finish(model.OutcomeFailed, err.Error())
			return false
		}
		if _, ok := form.(model.Unclassified); ok {
			c.finish(model.OutcomeQuarantined, "unknown form type %q", formType)
			return false
		}
		c.item.Kind = form.FormKind()
		if e, err = a.conv.entity(form, c.key); err != nil {
			c.finish(model.OutcomeFailed, err.Error())
			return false
		}

	case layout.ShapeLegacyNested:
		var err error
		if e, err = model.New(c.addr.Kind); err != nil {
			c.finish(model.OutcomeFailed, err.Error())
			return false
		}
		if err := store.Decode(c.doc.Fields, e); err != nil {
			c.finish(model.OutcomeFailed, "%v: %v", model.ErrInvalid, err)
			return false
		}
		if n, ok := e.(interface{ Normalize() }); ok {
			n.Normalize()
		}
		if err := e.Validate(); err != nil {
			c.finish(model.OutcomeFailed, err.Error())
			return false
		}
	}

	if e.Base().CreatedAt.IsZero() {
		e.Base().CreatedAt = c.doc.CreatedAt
	}
	c.entity = e
	return true
}

func (a *Auditor) explicitTenant(f store.Fields) (string, bool) {
	for _, name := range a.opts.TenantFields {
		if s, ok := f[name].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

// assignTenant derives the owning tenant and the target address of c. It
// returns false when c is finished as orphan or failed.
func (a *Auditor) assignTenant(ctx context.Context, c *candidate) bool {
	ref, ok := a.explicitTenant(c.doc.Fields)
	if !ok {
		if c.addr.Shape == layout.ShapeLegacyForm && c.keyErr != nil {
			c.finish(model.OutcomeOrphan, "%v: no tenant field and %v", model.ErrOrphan, c.keyErr)
			return false
		}
		ref = c.addr.Owner
	}

	t, err := a.tenants.Resolve(ctx, ref)
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, store.ErrInvalidPath):
		c.finish(model.OutcomeOrphan, "%v: tenant %q is not registered", model.ErrOrphan, ref)
		return false
	case err != nil:
		c.finish(model.OutcomeFailed, "resolve tenant %q: %v", ref, err)
		return false
	case !t.Active:
		c.finish(model.OutcomeFailed, "tenant %s: %v", t.ID, model.ErrTenantInactive)
		return false
	}

	id := c.addr.DocID
	if c.addr.Shape == layout.ShapeLegacyForm {
		id = util.StableID(t.ID, c.addr.DocID)
	}
	target, err := layout.ResolveCurrentPath(t.ID, c.entity.Kind(), id)
	if err != nil {
		c.finish(model.OutcomeFailed, err.Error())
		return false
	}

	b := c.entity.Base()
	b.ID, b.TenantID = id, t.ID
	c.item.TenantID, c.item.TargetPath = t.ID, target
	return true
}

// writeCurrent writes tenants concurrently and each tenant's documents in
// order.
func (a *Auditor) writeCurrent(ctx context.Context, groups map[string][]*candidate) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Concurrency)
	for _, cs := range groups {
		cs := cs
		g.Go(func() error {
			for _, c := range cs {
				if err := gctx.Err(); err != nil {
					return err
				}
				a.write(gctx, c)
			}
			return nil
		})
	}
	return g.Wait()
}

func (a *Auditor) write(ctx context.Context, c *candidate) {
	b := c.entity.Base()
	kind := c.entity.Kind()

	doc, err := a.repo.GetDocument(ctx, b.TenantID, kind, b.ID)
	if errors.Is(err, model.ErrNotFound) {
		if a.opts.DryRun {
			c.finish(model.OutcomePlanned, "create")
			return
		}
		if _, err := a.repo.Import(ctx, b.TenantID, c.entity); err != nil {
			c.finish(model.OutcomeFailed, "create: %v", err)
			return
		}
		c.finish(model.OutcomeCreated, "")
		return
	}
	if err != nil {
		c.finish(model.OutcomeFailed, "read target: %v", err)
		return
	}

	patch, err := diff(c.entity, doc.Fields)
	if err != nil {
		c.finish(model.OutcomeFailed, err.Error())
		return
	}
	if len(patch) == 0 {
		c.finish(model.OutcomeUnchanged, "")
		return
	}
	if a.opts.DryRun {
		c.finish(model.OutcomePlanned, "update %s", strings.Join(patch.Keys(), ","))
		return
	}
	if _, err := a.repo.Update(ctx, b.TenantID, kind, b.ID, patch); err != nil {
		c.finish(model.OutcomeFailed, "update: %v", err)
		return
	}
	c.finish(model.OutcomeUpdated, "%s", strings.Join(patch.Keys(), ","))
}

// bookkeeping fields never take part in the comparison.
var bookkeeping = map[string]bool{"id": true, "tenantId": true, "createdAt": true, "updatedAt": true}

// diff returns the fields of e whose stored value differs.
func diff(e model.Entity, current store.Fields) (store.Fields, error) {
	want, err := store.Encode(e)
	if err != nil {
		return nil, err
	}
	patch := store.Fields{}
	for k, v := range want {
		if bookkeeping[k] {
			continue
		}
		if !reflect.DeepEqual(v, current[k]) {
			patch[k] = v
		}
	}
	return patch, nil
}

// verify counts, per tenant and kind, how many of the distinct targets the
// legacy documents map to exist in the current layout. Documents created
// natively in the same collection do not offset a lost target.
func (a *Auditor) verify(ctx context.Context, groups map[string][]*candidate) ([]KindCount, error) {
	var out []KindCount
	for tenantID, cs := range groups {
		targets := make(map[model.Kind]map[string]struct{})
		for _, c := range cs {
			k := c.entity.Kind()
			if targets[k] == nil {
				targets[k] = make(map[string]struct{})
			}
			targets[k][c.entity.Base().ID] = struct{}{}
		}
		for k, ids := range targets {
			kc := KindCount{TenantID: tenantID, Kind: k, Legacy: len(ids)}
			for id := range ids {
				_, err := a.repo.GetDocument(ctx, tenantID, k, id)
				switch {
				case err == nil:
					kc.Current++
				case !errors.Is(err, model.ErrNotFound):
					return nil, fmt.Errorf("verify %s %s of %s: %w", k, id, tenantID, err)
				}
			}
			n, err := a.repo.Count(ctx, tenantID, k)
			if err != nil {
				return nil, fmt.Errorf("count %s of %s: %w", k, tenantID, err)
			}
			kc.Total = n
			out = append(out, kc)
		}
	}
	return out, nil
}
