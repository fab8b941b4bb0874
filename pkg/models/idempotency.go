package models

import (
	"time"

	"github.com/google/uuid"
)

// Idempotency record states. A record is created as pending when a key is
// first seen and either transitions to completed or is deleted on failure.
const (
	IdempotencyPending   = "pending"
	IdempotencyCompleted = "completed"
)

// IdempotencyRecord tracks exactly-once execution for a client-supplied key.
// Uniqueness is scoped per owner: two owners may reuse the same literal key.
type IdempotencyRecord struct {
	Key       string     `db:"idempotency_key" json:"idempotency_key"`
	OwnerID   uuid.UUID  `db:"owner_id"        json:"owner_id"`
	State     string     `db:"state"           json:"state"`
	Response  []byte     `db:"response"        json:"-"`
	LockedAt  *time.Time `db:"locked_at"       json:"locked_at,omitempty"`
	CreatedAt time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"      json:"updated_at"`
}
