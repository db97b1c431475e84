package model

import (
	"errors"

	"github.com/jmehdipour/restaurant-crm/internal/store"
)

// Store-level failures are shared so callers can test any layer's error with
// errors.Is against one set of values.
var (
	ErrNotFound         = store.ErrNotFound
	ErrAlreadyExists    = store.ErrAlreadyExists
	ErrPermissionDenied = store.ErrPermissionDenied
	ErrTransient        = store.ErrTransient
)

var (
	ErrTenantInactive = errors.New("tenant inactive")
	// ErrTenantMismatch reports an id or payload that belongs to another tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	ErrInvalid        = errors.New("invalid entity")
	ErrUnknownKind    = errors.New("unknown entity kind")

	// Migration-time conditions. They are recorded per document, not returned.
	ErrUnclassified = errors.New("unclassified legacy document")
	ErrOrphan       = errors.New("no derivable tenant")
)
