package model

import (
	"strings"
	"time"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationAccepted  ReservationStatus = "accepted"
	ReservationRejected  ReservationStatus = "rejected"
	ReservationCancelled ReservationStatus = "cancelled"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationAccepted, ReservationRejected, ReservationCancelled:
		return true
	}
	return false
}

type Reservation struct {
	Meta
	Contact       string            `json:"contact"`
	CustomerName  string            `json:"customerName"`
	PartySize     int               `json:"partySize"`
	RequestedAt   time.Time         `json:"requestedAt"`
	Status        ReservationStatus `json:"status"`
	Notes         string            `json:"notes,omitempty"`
	ReconfirmedAt *time.Time        `json:"reconfirmedAt,omitempty"`
}

func (*Reservation) Kind() Kind { return KindReservation }

func (r *Reservation) Normalize() {
	if r.Status == "" {
		r.Status = ReservationPending
	}
}

func (r *Reservation) Validate() error {
	switch {
	case strings.TrimSpace(r.Contact) == "":
		return invalid("reservation contact is required")
	case r.PartySize <= 0:
		return invalid("reservation party size must be positive, got %d", r.PartySize)
	case r.RequestedAt.IsZero():
		return invalid("reservation requestedAt is required")
	case !r.Status.Valid():
		return invalid("reservation status %q", r.Status)
	}
	return nil
}
