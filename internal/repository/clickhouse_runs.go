package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/restaurant-crm/internal/model"
)

// MigrationArchive keeps the per-document lines of migration reports.
type MigrationArchive interface {
	InsertItems(ctx context.Context, items []model.MigrationItem) error
	ListItems(ctx context.Context, runID string, outcome model.Outcome, limit, offset int) ([]model.MigrationItem, error)
}

type chMigrationArchive struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHMigrationArchive(ch *sqlx.DB) MigrationArchive {
	return &chMigrationArchive{ch: ch}
}

// InsertItems writes items as one ClickHouse batch.
func (r *chMigrationArchive) InsertItems(ctx context.Context, items []model.MigrationItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO migration_items
		    (run_id, started_at, source_path, tenant_id, kind, outcome, target_path, detail)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx,
			it.RunID, it.StartedAt, it.SourcePath, it.TenantID,
			string(it.Kind), string(it.Outcome), it.TargetPath, it.Detail,
		); err != nil {
			return fmt.Errorf("append %s: %w", it.SourcePath, err)
		}
	}
	return tx.Commit()
}

func (r *chMigrationArchive) ListItems(ctx context.Context, runID string, outcome model.Outcome, limit, offset int) ([]model.MigrationItem, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT run_id, started_at, source_path, tenant_id, kind, outcome, target_path, detail
		FROM migration_items
		WHERE run_id = ?
	`
	args := []any{runID}

	if outcome != "" {
		q += " AND outcome = ?"
		args = append(args, string(outcome))
	}

	q += " ORDER BY tenant_id, source_path LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.MigrationItem
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
