package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/praghav/modelgate/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateCredential(ctx context.Context, cred *models.Credential) error
	GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error)
	ListActiveCredentials(ctx context.Context) ([]*models.Credential, error)
	UpdateCredentialLastUsed(ctx context.Context, id uuid.UUID) error
	RevokeCredential(ctx context.Context, id uuid.UUID) error
	CountCredentials(ctx context.Context) (int, error)

	// InsertIdempotencyPending is the atomic create-if-absent step. It returns
	// ErrDuplicateKey when a record for (key, ownerID) already exists.
	InsertIdempotencyPending(ctx context.Context, key string, ownerID uuid.UUID, lockedAt time.Time) error
	GetIdempotencyRecord(ctx context.Context, key string, ownerID uuid.UUID) (*models.IdempotencyRecord, error)
	// ReclaimIdempotencyPending takes over a pending record whose lock is older
	// than staleBefore. Returns ErrNotFound when the record is missing, not
	// pending, or not yet stale.
	ReclaimIdempotencyPending(ctx context.Context, key string, ownerID uuid.UUID, staleBefore, lockedAt time.Time) error
	CompleteIdempotencyRecord(ctx context.Context, key string, ownerID uuid.UUID, response []byte) error
	DeleteIdempotencyRecord(ctx context.Context, key string, ownerID uuid.UUID) error

	CreateRequestOutcome(ctx context.Context, outcome *models.RequestOutcome) error
}
