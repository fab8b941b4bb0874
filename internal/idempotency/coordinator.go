// Package idempotency deduplicates requests carrying a client-supplied
// idempotency key, scoped per owning credential.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praghav/modelgate/internal/store"
	"github.com/praghav/modelgate/pkg/models"
)

// ErrConflict is returned when another request holding the same (key, owner)
// pair is still in flight. The caller must not execute.
var ErrConflict = errors.New("idempotency key currently processing")

// Outcome is the result of Begin. Fresh means the caller owns execution for
// this key; Replayed means a completed record exists and Response must be
// returned verbatim without executing.
type Outcome struct {
	Replayed bool
	Response []byte
}

// Coordinator drives the per-key state machine:
// absent -> pending -> {completed | absent}.
type Coordinator struct {
	store store.Store
	lease time.Duration
}

// NewCoordinator creates a Coordinator. lease bounds how long a pending
// record left by a crashed request blocks retries before being reclaimed.
func NewCoordinator(s store.Store, lease time.Duration) *Coordinator {
	if lease <= 0 {
		lease = 60 * time.Second
	}
	return &Coordinator{store: s, lease: lease}
}

// Begin claims execution for (key, ownerID). The create-if-absent step is a
// single unique-constraint insert at the storage layer, so two concurrent
// requests with the same pair can never both come back Fresh: the insert
// loser observes either the winner's pending record (conflict) or its
// committed response (replay).
func (c *Coordinator) Begin(ctx context.Context, key string, ownerID uuid.UUID) (*Outcome, error) {
	now := time.Now().UTC()

	err := c.store.InsertIdempotencyPending(ctx, key, ownerID, now)
	if err == nil {
		return &Outcome{}, nil
	}
	if !errors.Is(err, store.ErrDuplicateKey) {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}

	rec, err := c.store.GetIdempotencyRecord(ctx, key, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		// The racing holder aborted between our insert and read. One more
		// insert attempt; a second duplicate means yet another claimant won.
		if err := c.store.InsertIdempotencyPending(ctx, key, ownerID, now); err == nil {
			return &Outcome{}, nil
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency record: %w", err)
	}

	if rec.State == models.IdempotencyCompleted {
		return &Outcome{Replayed: true, Response: rec.Response}, nil
	}

	// Pending: live records conflict; records whose lock outlived the lease
	// belong to a crashed request and may be taken over. The takeover is a
	// conditional update, so concurrent reclaimers race safely.
	staleBefore := now.Add(-c.lease)
	if rec.LockedAt != nil && rec.LockedAt.Before(staleBefore) {
		if err := c.store.ReclaimIdempotencyPending(ctx, key, ownerID, staleBefore, now); err == nil {
			return &Outcome{}, nil
		}
	}
	return nil, ErrConflict
}

// Commit transitions pending -> completed, persisting the response payload
// verbatim so future replays are byte-identical.
func (c *Coordinator) Commit(ctx context.Context, key string, ownerID uuid.UUID, response []byte) error {
	if err := c.store.CompleteIdempotencyRecord(ctx, key, ownerID, response); err != nil {
		return fmt.Errorf("commit idempotency record: %w", err)
	}
	return nil
}

// Abort deletes the record entirely so the client may retry with the same key.
func (c *Coordinator) Abort(ctx context.Context, key string, ownerID uuid.UUID) error {
	if err := c.store.DeleteIdempotencyRecord(ctx, key, ownerID); err != nil {
		return fmt.Errorf("abort idempotency record: %w", err)
	}
	return nil
}
