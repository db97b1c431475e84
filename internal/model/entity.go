package model

import (
	"fmt"
	"time"
)

// Meta is the identity and bookkeeping every tenant-scoped entity carries.
type Meta struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Base gives access to the embedded Meta of any entity.
func (m *Meta) Base() *Meta { return m }

// Entity is implemented by *Customer, *Order, *Reservation and *Product.
type Entity interface {
	Kind() Kind
	Base() *Meta
	Validate() error
}

// New returns a zero entity of kind k.
func New(k Kind) (Entity, error) {
	switch k {
	case KindCustomer:
		return &Customer{}, nil
	case KindOrder:
		return &Order{}, nil
	case KindReservation:
		return &Reservation{}, nil
	case KindProduct:
		return &Product{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, k)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}
