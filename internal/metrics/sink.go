// Package metrics records request outcomes off the response path.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/praghav/modelgate/internal/store"
	"github.com/praghav/modelgate/pkg/models"
)

const writeTimeout = 5 * time.Second

// Sink receives fire-and-forget outcome records. Implementations must never
// block the caller or surface write failures as request failures.
type Sink interface {
	Record(outcome models.RequestOutcome)
}

// StoreSink persists outcomes to the store from a background goroutine.
// Write failures are logged and dropped.
type StoreSink struct {
	store store.Store
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(s store.Store) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Record(outcome models.RequestOutcome) {
	if outcome.ID == uuid.Nil {
		outcome.ID = uuid.New()
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}
	if outcome.ErrorKind == "" {
		outcome.ErrorKind = models.ErrorKindNone
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := s.store.CreateRequestOutcome(ctx, &outcome); err != nil {
			slog.Error("record outcome failed",
				"error", err,
				"provider", outcome.ProviderUsed,
				"status", outcome.Status,
			)
		}
	}()
}

var _ Sink = (*StoreSink)(nil)
