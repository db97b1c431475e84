package migration

import (
	"sort"
	"time"

	"github.com/jmehdipour/restaurant-crm/internal/model"
)

// KindCount compares one tenant's kind across layouts.
type KindCount struct {
	TenantID string     `json:"tenantId"`
	Kind     model.Kind `json:"kind"`
	// Legacy is the number of distinct current-layout targets the legacy
	// documents map to; Current is how many of those targets exist.
	Legacy  int `json:"legacy"`
	Current int `json:"current"`
	// Total is the size of the whole current collection, native documents
	// included. It is informational only.
	Total int `json:"total"`
}

// Regression reports whether documents were lost for this tenant and kind.
func (c KindCount) Regression() bool { return c.Legacy > c.Current }

// Report is the result of one migration run.
type Report struct {
	RunID      string                `json:"runId"`
	DryRun     bool                  `json:"dryRun"`
	StartedAt  time.Time             `json:"startedAt"`
	FinishedAt time.Time             `json:"finishedAt"`
	Scanned    int                   `json:"scanned"`
	Items      []model.MigrationItem `json:"items"`
	Counts     []KindCount           `json:"counts"`
	Warnings   []string              `json:"warnings,omitempty"`
}

// Tally counts items per outcome.
func (r *Report) Tally() map[model.Outcome]int {
	out := make(map[model.Outcome]int)
	for _, it := range r.Items {
		out[it.Outcome]++
	}
	return out
}

// Regressions lists the tenant kinds whose current count fell short. Dry runs
// never report regressions.
func (r *Report) Regressions() []KindCount {
	if r.DryRun {
		return nil
	}
	var out []KindCount
	for _, c := range r.Counts {
		if c.Regression() {
			out = append(out, c)
		}
	}
	return out
}

// ByOutcome returns the items with outcome o.
func (r *Report) ByOutcome(o model.Outcome) []model.MigrationItem {
	var out []model.MigrationItem
	for _, it := range r.Items {
		if it.Outcome == o {
			out = append(out, it)
		}
	}
	return out
}

func (r *Report) sort() {
	sort.Slice(r.Items, func(i, j int) bool { return r.Items[i].SourcePath < r.Items[j].SourcePath })
	sort.Slice(r.Counts, func(i, j int) bool {
		if r.Counts[i].TenantID != r.Counts[j].TenantID {
			return r.Counts[i].TenantID < r.Counts[j].TenantID
		}
		return r.Counts[i].Kind < r.Counts[j].Kind
	})
}
