// Package store defines the document database the CRM runs on and its
// implementations: an in-memory store for tests and local runs, a MySQL
// JSON-document store for production, and a resilient decorator that applies
// the retry and timeout policy to any of them.
//
// Paths are slash-separated segments alternating collection and document
// names, e.g. "clients/rest_donpepe_001/clientes/c1".
package store

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTransient marks network, timeout and availability failures. It is the
	// only class the resilient store retries.
	ErrTransient   = errors.New("transient store failure")
	ErrInvalidPath = errors.New("invalid document path")
)

// Fields is the schemaless content of a document. Values are JSON-compatible:
// string, float64, bool, nil, []any and map[string]any.
type Fields map[string]any

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

// Keys returns the field names of f in sorted order.
func (f Fields) Keys() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Fields:
		return map[string]any(t.Clone())
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Document is one stored document.
type Document struct {
	Path      string
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ID returns the last path segment.
func (d Document) ID() string {
	_, id := Split(d.Path)
	return id
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query narrows a collection read. Only equality filters are supported.
type Query struct {
	Where   []Filter
	OrderBy string // top-level field; empty means path order
	Desc    bool
	Limit   int // 0 means unlimited
}

// Store is the document database used by every component. Implementations
// guarantee per-document atomicity only.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, path string) (Document, error)
	// Create writes a new document and fails with ErrAlreadyExists when the
	// path is taken. It is the only atomic create-if-absent primitive.
	Create(ctx context.Context, path string, fields Fields) error
	// Set writes the document, replacing it or merging top-level fields.
	Set(ctx context.Context, path string, fields Fields, merge bool) error
	// Update merges top-level fields into an existing document and fails with
	// ErrNotFound when it is absent.
	Update(ctx context.Context, path string, fields Fields) error
	// Delete removes the document; deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// Query lists the documents directly inside collection.
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	// QueryGroup lists documents of every collection named collectionID,
	// wherever it is nested.
	QueryGroup(ctx context.Context, collectionID string) ([]Document, error)
	Close() error
}
