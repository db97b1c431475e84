package model

import "time"

// Outcome is the per-document result of a migration run.
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeUpdated     Outcome = "updated"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeQuarantined Outcome = "quarantined"
	OutcomeOrphan      Outcome = "orphan"
	OutcomeFailed      Outcome = "failed"
	OutcomePlanned     Outcome = "planned"
)

// MigrationItem is one archived line of a migration report.
type MigrationItem struct {
	RunID      string    `db:"run_id"      json:"runId"`
	StartedAt  time.Time `db:"started_at"  json:"startedAt"`
	SourcePath string    `db:"source_path" json:"sourcePath"`
	TenantID   string    `db:"tenant_id"   json:"tenantId,omitempty"`
	Kind       Kind      `db:"kind"        json:"kind,omitempty"`
	Outcome    Outcome   `db:"outcome"     json:"outcome"`
	TargetPath string    `db:"target_path" json:"targetPath,omitempty"`
	Detail     string    `db:"detail"      json:"detail,omitempty"`
}
