package model

import "time"

type ChangeOp string

const (
	OpCreated     ChangeOp = "created"
	OpUpdated     ChangeOp = "updated"
	OpDeleted     ChangeOp = "deleted"
	OpDeactivated ChangeOp = "deactivated"
)

// EntityChanged is published after every successful repository write.
type EntityChanged struct {
	TenantID string   `json:"tenantId"`
	Kind     Kind     `json:"kind"`
	ID       string   `json:"id"`
	Op       ChangeOp `json:"op"`
}

// TenantChanged is published after tenant admin writes; cache invalidators
// evict the tenant on receipt.
type TenantChanged struct {
	TenantID string   `json:"tenantId"`
	Op       ChangeOp `json:"op"`
}

// Envelope is the payload written to Kafka. Key is the tenant id so one
// tenant's events stay ordered within a partition.
type Envelope struct {
	ID      string    `json:"id"` // ULID
	Type    string    `json:"type"`
	Tenant  string    `json:"tenant"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}
