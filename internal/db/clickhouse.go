package db

import (
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/restaurant-crm/internal/config"
)

// NewClickHouseConnection opens the migration archive, e.g.
// clickhouse://default:@localhost:9000/crm?dial_timeout=5s
func NewClickHouseConnection(cfg config.ClickHouseConfig) (*sqlx.DB, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("clickhouse is disabled")
	}
	db, err := sqlx.Open("clickhouse", cfg.DSN)
	if err != nil {
		return nil, err
	}
	applyPool(db, cfg.DatabaseConfig)

	if err := ping(db, cfg.PingTimeout, 3*time.Second); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return db, nil
}
