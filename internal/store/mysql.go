package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var _ Store = (*MySQL)(nil)

// MySQL keeps every document as one row of the `documents` table, with the
// fields serialized as a JSON column. See internal/db/schema/mysql.sql.
type MySQL struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewMySQL wraps an open connection (see db.NewMySQLConnection).
func NewMySQL(db *sqlx.DB) *MySQL {
	return &MySQL{db: db, now: time.Now}
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type docRow struct {
	Path      string    `db:"path"`
	Fields    []byte    `db:"fields"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r docRow) document() (Document, error) {
	var f Fields
	if err := json.Unmarshal(r.Fields, &f); err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", r.Path, err)
	}
	return Document{Path: r.Path, Fields: f, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}, nil
}

func (s *MySQL) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	t, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return classify(t.Commit())
}

func (s *MySQL) Get(ctx context.Context, path string) (Document, error) {
	if err := ValidateDocPath(path); err != nil {
		return Document{}, err
	}
	var row docRow
	err := s.db.GetContext(ctx, &row, `
		SELECT path, fields, created_at, updated_at
		  FROM documents
		 WHERE path = ?
	`, path)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Document{}, classify(err)
	}
	return row.document()
}

func (s *MySQL) Create(ctx context.Context, path string, fields Fields) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	parent, _ := Split(path)
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (path, parent, collection_id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, path, parent, CollectionID(parent), b, now, now)
	if err != nil {
		return fmt.Errorf("%s: %w", path, classify(err))
	}
	return nil
}

func (s *MySQL) Set(ctx context.Context, path string, fields Fields, merge bool) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	onDup := `fields = VALUES(fields)`
	if merge {
		onDup = `fields = JSON_MERGE_PATCH(fields, VALUES(fields))`
	}
	parent, _ := Split(path)
	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (path, parent, collection_id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE `+onDup+`, updated_at = VALUES(updated_at)
	`, path, parent, CollectionID(parent), b, now, now)
	if err != nil {
		return fmt.Errorf("%s: %w", path, classify(err))
	}
	return nil
}

func (s *MySQL) Update(ctx context.Context, path string, fields Fields) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var one int
		err := tx.QueryRowxContext(ctx, `SELECT 1 FROM documents WHERE path = ? FOR UPDATE`, path).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		if err != nil {
			return classify(err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE documents
			   SET fields = JSON_MERGE_PATCH(fields, ?), updated_at = ?
			 WHERE path = ?
		`, b, s.now().UTC(), path)
		return classify(err)
	})
}

func (s *MySQL) Delete(ctx context.Context, path string) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	return classify(err)
}

func (s *MySQL) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ValidateCollectionPath(collection); err != nil {
		return nil, err
	}

	var sb strings.Builder
	args := []any{collection}
	sb.WriteString(`SELECT path, fields, created_at, updated_at FROM documents WHERE parent = ?`)

	for _, w := range q.Where {
		if !fieldName.MatchString(w.Field) {
			return nil, fmt.Errorf("invalid filter field %q", w.Field)
		}
		v, err := json.Marshal(w.Value)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", w.Field, err)
		}
		sb.WriteString(` AND JSON_EXTRACT(fields, ?) = CAST(? AS JSON)`)
		args = append(args, "$."+w.Field, string(v))
	}

	if q.OrderBy != "" {
		if !fieldName.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		sb.WriteString(` ORDER BY JSON_EXTRACT(fields, ?) ` + dir + `, path ASC`)
		args = append(args, "$."+q.OrderBy)
	} else {
		sb.WriteString(` ORDER BY path ASC`)
	}
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, classify(err)
	}
	return toDocuments(rows)
}

func (s *MySQL) QueryGroup(ctx context.Context, collectionID string) ([]Document, error) {
	var rows []docRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT path, fields, created_at, updated_at
		  FROM documents
		 WHERE collection_id = ?
		 ORDER BY path ASC
	`, collectionID)
	if err != nil {
		return nil, classify(err)
	}
	return toDocuments(rows)
}

func (s *MySQL) Close() error { return s.db.Close() }

func toDocuments(rows []docRow) ([]Document, error) {
	out := make([]Document, 0, len(rows))
	for _, r := range rows {
		d, err := r.document()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// classify maps driver errors onto the store taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062: // duplicate entry
			return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
		case 1044, 1045, 1142, 1143: // access denied
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case 1040, 1205, 1213: // too many connections, lock wait timeout, deadlock
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return err
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
