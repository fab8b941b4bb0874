package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/praghav/modelgate/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Credentials ---

func (s *PostgresStore) CreateCredential(ctx context.Context, cred *models.Credential) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credentials (id, owner_id, key_hash, rate_tier, rate_limit, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cred.ID, cred.OwnerID, cred.KeyHash, cred.RateTier, cred.RateLimit, cred.Active,
		cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	var c models.Credential
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, key_hash, rate_tier, rate_limit, active, last_used_at, created_at, updated_at
		 FROM credentials WHERE id = $1`, id,
	).Scan(&c.ID, &c.OwnerID, &c.KeyHash, &c.RateTier, &c.RateLimit, &c.Active,
		&c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListActiveCredentials(ctx context.Context) ([]*models.Credential, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, key_hash, rate_tier, rate_limit, active, last_used_at, created_at, updated_at
		 FROM credentials WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		var c models.Credential
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.KeyHash, &c.RateTier, &c.RateLimit, &c.Active,
			&c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, &c)
	}
	return creds, rows.Err()
}

func (s *PostgresStore) UpdateCredentialLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE credentials SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update credential last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeCredential(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE credentials SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountCredentials(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count credentials: %w", err)
	}
	return n, nil
}

// --- Idempotency records ---

func (s *PostgresStore) InsertIdempotencyPending(ctx context.Context, key string, ownerID uuid.UUID, lockedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_records (idempotency_key, owner_id, state, locked_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		key, ownerID, models.IdempotencyPending, lockedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIdempotencyRecord(ctx context.Context, key string, ownerID uuid.UUID) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := s.pool.QueryRow(ctx,
		`SELECT idempotency_key, owner_id, state, response, locked_at, created_at, updated_at
		 FROM idempotency_records WHERE idempotency_key = $1 AND owner_id = $2`,
		key, ownerID,
	).Scan(&rec.Key, &rec.OwnerID, &rec.State, &rec.Response, &rec.LockedAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) ReclaimIdempotencyPending(ctx context.Context, key string, ownerID uuid.UUID, staleBefore, lockedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE idempotency_records SET locked_at = $4, updated_at = NOW()
		 WHERE idempotency_key = $1 AND owner_id = $2 AND state = $5 AND locked_at < $3`,
		key, ownerID, staleBefore, lockedAt, models.IdempotencyPending)
	if err != nil {
		return fmt.Errorf("reclaim idempotency record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CompleteIdempotencyRecord(ctx context.Context, key string, ownerID uuid.UUID, response []byte) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE idempotency_records SET state = $3, response = $4, locked_at = NULL, updated_at = NOW()
		 WHERE idempotency_key = $1 AND owner_id = $2 AND state = $5`,
		key, ownerID, models.IdempotencyCompleted, response, models.IdempotencyPending)
	if err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteIdempotencyRecord(ctx context.Context, key string, ownerID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_records WHERE idempotency_key = $1 AND owner_id = $2`,
		key, ownerID)
	if err != nil {
		return fmt.Errorf("delete idempotency record: %w", err)
	}
	return nil
}

// --- Request outcomes ---

func (s *PostgresStore) CreateRequestOutcome(ctx context.Context, outcome *models.RequestOutcome) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO request_outcomes (id, owner_id, model_requested, provider_used, latency_ms, tokens_used, cost, status, error_kind, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		outcome.ID, outcome.OwnerID, outcome.ModelRequested, outcome.ProviderUsed,
		outcome.LatencyMs, outcome.TokensUsed, outcome.Cost, outcome.Status,
		outcome.ErrorKind, outcome.CreatedAt)
	if err != nil {
		return fmt.Errorf("create request outcome: %w", err)
	}
	return nil
}

// isDuplicateKeyError reports whether err is a Postgres unique violation (23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
