package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/praghav/modelgate/internal/store"
	"github.com/praghav/modelgate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("modelgate_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newCredential() *models.Credential {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Credential{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		KeyHash:   "$2a$10$fakehashforstoretesting",
		RateTier:  models.TierStandard,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Credential Tests ---

func TestCredential_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	cred := newCredential()
	limit := 42
	cred.RateLimit = &limit

	require.NoError(t, s.CreateCredential(ctx, cred))

	got, err := s.GetCredential(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, got.ID)
	assert.Equal(t, cred.OwnerID, got.OwnerID)
	assert.Equal(t, cred.KeyHash, got.KeyHash)
	assert.Equal(t, models.TierStandard, got.RateTier)
	require.NotNil(t, got.RateLimit)
	assert.Equal(t, 42, *got.RateLimit)
	assert.True(t, got.Active)
	assert.Nil(t, got.LastUsedAt)
}

func TestCredential_GetMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))

	_, err := s.GetCredential(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCredential_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	cred := newCredential()
	require.NoError(t, s.CreateCredential(ctx, cred))

	err := s.CreateCredential(ctx, cred)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestCredential_ListActiveExcludesRevoked(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	active := newCredential()
	revoked := newCredential()
	require.NoError(t, s.CreateCredential(ctx, active))
	require.NoError(t, s.CreateCredential(ctx, revoked))
	require.NoError(t, s.RevokeCredential(ctx, revoked.ID))

	creds, err := s.ListActiveCredentials(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, active.ID, creds[0].ID)
}

func TestCredential_RevokeTwice(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	cred := newCredential()
	require.NoError(t, s.CreateCredential(ctx, cred))
	require.NoError(t, s.RevokeCredential(ctx, cred.ID))

	assert.ErrorIs(t, s.RevokeCredential(ctx, cred.ID), store.ErrNotFound)
}

func TestCredential_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	cred := newCredential()
	require.NoError(t, s.CreateCredential(ctx, cred))
	require.NoError(t, s.UpdateCredentialLastUsed(ctx, cred.ID))

	got, err := s.GetCredential(ctx, cred.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastUsedAt)
}

func TestCredential_Count(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	n, err := s.CountCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.CreateCredential(ctx, newCredential()))
	require.NoError(t, s.CreateCredential(ctx, newCredential()))

	n, err = s.CountCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// --- Idempotency Tests ---

func TestIdempotency_InsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, s.InsertIdempotencyPending(ctx, "key-1", owner, now))

	rec, err := s.GetIdempotencyRecord(ctx, "key-1", owner)
	require.NoError(t, err)
	assert.Equal(t, "key-1", rec.Key)
	assert.Equal(t, owner, rec.OwnerID)
	assert.Equal(t, models.IdempotencyPending, rec.State)
	require.NotNil(t, rec.LockedAt)
	assert.WithinDuration(t, now, *rec.LockedAt, time.Millisecond)
	assert.Nil(t, rec.Response)
}

func TestIdempotency_DuplicateInsert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, s.InsertIdempotencyPending(ctx, "key-1", owner, time.Now().UTC()))
	err := s.InsertIdempotencyPending(ctx, "key-1", owner, time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestIdempotency_SameKeyDifferentOwners(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.InsertIdempotencyPending(ctx, "shared", uuid.New(), now))
	assert.NoError(t, s.InsertIdempotencyPending(ctx, "shared", uuid.New(), now))
}

func TestIdempotency_Complete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, s.InsertIdempotencyPending(ctx, "key-1", owner, time.Now().UTC()))

	body := []byte(`{"output":"hello"}`)
	require.NoError(t, s.CompleteIdempotencyRecord(ctx, "key-1", owner, body))

	rec, err := s.GetIdempotencyRecord(ctx, "key-1", owner)
	require.NoError(t, err)
	assert.Equal(t, models.IdempotencyCompleted, rec.State)
	assert.Equal(t, body, rec.Response)
	assert.Nil(t, rec.LockedAt)
}

func TestIdempotency_CompleteTwiceFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, s.InsertIdempotencyPending(ctx, "key-1", owner, time.Now().UTC()))
	require.NoError(t, s.CompleteIdempotencyRecord(ctx, "key-1", owner, []byte("{}")))

	// Already completed: the pending-state guard refuses a second write.
	err := s.CompleteIdempotencyRecord(ctx, "key-1", owner, []byte(`{"other":1}`))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIdempotency_ReclaimStale(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, s.InsertIdempotencyPending(ctx, "key-1", owner, now.Add(-2*time.Minute)))

	err := s.ReclaimIdempotencyPending(ctx, "key-1", owner, now.Add(-time.Minute), now)
	require.NoError(t, err)

	rec, err := s.GetIdempotencyRecord(ctx, "key-1", owner)
	require.NoError(t, err)
	require.NotNil(t, rec.LockedAt)
	assert.WithinDuration(t, now, *rec.LockedAt, time.Millisecond)
}

func TestIdempotency_ReclaimFreshFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, s.InsertIdempotencyPending(ctx, "key-1", owner, now))

	err := s.ReclaimIdempotencyPending(ctx, "key-1", owner, now.Add(-time.Minute), now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIdempotency_DeleteAllowsReinsert(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()
	owner := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, s.InsertIdempotencyPending(ctx, "key-1", owner, now))
	require.NoError(t, s.DeleteIdempotencyRecord(ctx, "key-1", owner))
	assert.NoError(t, s.InsertIdempotencyPending(ctx, "key-1", owner, now))
}

// --- Request Outcome Tests ---

func TestRequestOutcome_Create(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	ctx := context.Background()

	outcome := &models.RequestOutcome{
		ID:             uuid.New(),
		OwnerID:        uuid.New(),
		ModelRequested: "auto",
		ProviderUsed:   "gemini",
		LatencyMs:      182.5,
		TokensUsed:     24,
		Cost:           0.0045,
		Status:         models.OutcomeSuccess,
		ErrorKind:      models.ErrorKindNone,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	assert.NoError(t, s.CreateRequestOutcome(ctx, outcome))
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := store.NewPostgresStore(setupTestDB(t))
	assert.NoError(t, s.Ping(context.Background()))
}
