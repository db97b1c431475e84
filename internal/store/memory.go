package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Compile-time contract assertion.
var _ Store = (*Memory)(nil)

// Memory is an in-process Store used by tests, seeds and dry runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Document
	now  func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, path string) (Document, error) {
	if err := ValidateDocPath(path); err != nil {
		return Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.docs[path]
	if !ok {
		return Document{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	d.Fields = d.Fields.Clone()
	return d, nil
}

func (m *Memory) Create(ctx context.Context, path string, fields Fields) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[path]; ok {
		return fmt.Errorf("%s: %w", path, ErrAlreadyExists)
	}
	now := m.now().UTC()
	m.docs[path] = Document{Path: path, Fields: fields.Clone(), CreatedAt: now, UpdatedAt: now}
	return nil
}

func (m *Memory) Set(ctx context.Context, path string, fields Fields, merge bool) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	cur, ok := m.docs[path]
	if !ok {
		m.docs[path] = Document{Path: path, Fields: fields.Clone(), CreatedAt: now, UpdatedAt: now}
		return nil
	}
	if merge {
		next := cur.Fields.Clone()
		if next == nil {
			next = Fields{}
		}
		for k, v := range fields {
			next[k] = cloneValue(v)
		}
		cur.Fields = next
	} else {
		cur.Fields = fields.Clone()
	}
	cur.UpdatedAt = now
	m.docs[path] = cur
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fields Fields) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.docs[path]
	if !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	next := cur.Fields.Clone()
	if next == nil {
		next = Fields{}
	}
	for k, v := range fields {
		next[k] = cloneValue(v)
	}
	cur.Fields = next
	cur.UpdatedAt = m.now().UTC()
	m.docs[path] = cur
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	if err := ValidateDocPath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.Lock()
	delete(m.docs, path)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ValidateCollectionPath(collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.RLock()
	out := make([]Document, 0)
	for p, d := range m.docs {
		parent, _ := Split(p)
		if parent != collection || !matches(d.Fields, q.Where) {
			continue
		}
		d.Fields = d.Fields.Clone()
		out = append(out, d)
	}
	m.mu.RUnlock()

	sortDocs(out, q.OrderBy, q.Desc)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) QueryGroup(ctx context.Context, collectionID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	m.mu.RLock()
	out := make([]Document, 0)
	for p, d := range m.docs {
		parent, _ := Split(p)
		if CollectionID(parent) != collectionID {
			continue
		}
		d.Fields = d.Fields.Clone()
		out = append(out, d)
	}
	m.mu.RUnlock()

	sortDocs(out, "", false)
	return out, nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) Close() error { return nil }

func sortDocs(docs []Document, field string, desc bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := 0
		if field != "" {
			c = compareValues(docs[i].Fields[field], docs[j].Fields[field])
		}
		if c == 0 {
			c = compareStrings(docs[i].Path, docs[j].Path)
			return c < 0
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
