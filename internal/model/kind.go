package model

import (
	"fmt"
	"strings"
)

// Kind names a tenant-scoped entity type. The value is the public (API) name.
type Kind string

const (
	KindCustomer    Kind = "customers"
	KindOrder       Kind = "orders"
	KindReservation Kind = "reservations"
	KindProduct     Kind = "products"
)

// Kinds lists every tenant-scoped kind in a stable order.
var Kinds = []Kind{KindCustomer, KindOrder, KindReservation, KindProduct}

func (k Kind) String() string { return string(k) }

func (k Kind) Valid() bool {
	switch k {
	case KindCustomer, KindOrder, KindReservation, KindProduct:
		return true
	}
	return false
}

// ParseKind accepts the public name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
