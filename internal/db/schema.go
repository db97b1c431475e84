package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

var (
	//go:embed schema/mysql.sql
	mysqlSchema string
	//go:embed schema/clickhouse.sql
	clickhouseSchema string
)

// ApplyMySQLSchema creates the documents table if it is missing.
func ApplyMySQLSchema(ctx context.Context, db *sqlx.DB) error {
	return execStatements(ctx, db, mysqlSchema)
}

// ApplyClickHouseSchema creates the migration archive table if it is missing.
func ApplyClickHouseSchema(ctx context.Context, db *sqlx.DB) error {
	return execStatements(ctx, db, clickhouseSchema)
}

// execStatements runs each ';'-terminated statement separately; neither
// driver accepts multi-statement strings by default.
func execStatements(ctx context.Context, db *sqlx.DB, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
