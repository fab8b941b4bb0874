// Package models contains shared data models used across the ModelGate codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Credential represents an API credential for gateway access.
// Raw secrets are shown once at issuance; only the bcrypt hash is stored.
type Credential struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	OwnerID    uuid.UUID  `db:"owner_id"     json:"owner_id"`
	KeyHash    string     `db:"key_hash"     json:"-"`
	RateTier   string     `db:"rate_tier"    json:"rate_tier"`
	RateLimit  *int       `db:"rate_limit"   json:"rate_limit,omitempty"`
	Active     bool       `db:"active"       json:"active"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

// Rate tiers a credential can be issued under.
const (
	TierFree     = "free"
	TierStandard = "standard"
	TierPro      = "pro"
)
