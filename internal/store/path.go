package store

import (
	"fmt"
	"strings"
	"time"
)

// Join builds a path from segments without validating them.
func Join(segments ...string) string { return strings.Join(segments, "/") }

// Split returns the parent collection path and the document id of a document path.
func Split(path string) (collection, id string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// CollectionID returns the last segment of a collection path.
func CollectionID(collection string) string {
	_, id := Split(collection)
	return id
}

// ValidateDocPath checks that path has an even, non-zero number of valid segments.
func ValidateDocPath(path string) error {
	n, err := countSegments(path)
	if err != nil {
		return err
	}
	if n%2 != 0 {
		return fmt.Errorf("%w: %q addresses a collection", ErrInvalidPath, path)
	}
	return nil
}

// ValidateCollectionPath checks that path has an odd number of valid segments.
func ValidateCollectionPath(path string) error {
	n, err := countSegments(path)
	if err != nil {
		return err
	}
	if n%2 != 1 {
		return fmt.Errorf("%w: %q addresses a document", ErrInvalidPath, path)
	}
	return nil
}

func countSegments(path string) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return 0, fmt.Errorf("%w: %q has an empty or relative segment", ErrInvalidPath, path)
		}
	}
	return len(segs), nil
}

// matches reports whether every filter holds on f.
func matches(f Fields, where []Filter) bool {
	for _, w := range where {
		v, ok := f[w.Field]
		if !ok || !equalValues(v, w.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

// compareValues orders values of the same JSON type; mixed or missing values
// sort first. Strings that are RFC 3339 timestamps compare chronologically.
func compareValues(a, b any) int {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	switch {
	case okA && okB:
		ta, errA := time.Parse(time.RFC3339Nano, sa)
		tb, errB := time.Parse(time.RFC3339Nano, sb)
		if errA == nil && errB == nil {
			return ta.Compare(tb)
		}
		return strings.Compare(sa, sb)
	case okA:
		return 1
	case okB:
		return -1
	}
	if a == nil && b != nil {
		return -1
	}
	if a != nil && b == nil {
		return 1
	}
	return 0
}
