package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome statuses and error kinds recorded per provider attempt.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	ErrorKindNone      = "none"
	ErrorKindTemporary = "temporary"
	ErrorKindPermanent = "permanent"
)

// RequestOutcome is an append-only record of a single provider attempt.
// Written off the response path; a write failure never fails the request.
type RequestOutcome struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	OwnerID        uuid.UUID `db:"owner_id"        json:"owner_id"`
	ModelRequested string    `db:"model_requested" json:"model_requested"`
	ProviderUsed   string    `db:"provider_used"   json:"provider_used"`
	LatencyMs      float64   `db:"latency_ms"      json:"latency_ms"`
	TokensUsed     int       `db:"tokens_used"     json:"tokens_used"`
	Cost           float64   `db:"cost"            json:"cost"`
	Status         string    `db:"status"          json:"status"`
	ErrorKind      string    `db:"error_kind"      json:"error_kind"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}
