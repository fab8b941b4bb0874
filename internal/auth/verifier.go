// Package auth verifies presented credentials against their stored bcrypt
// hashes, with a digest-keyed cache in front of the comparison race.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/praghav/modelgate/internal/cache"
	"github.com/praghav/modelgate/internal/config"
	"github.com/praghav/modelgate/internal/store"
	"github.com/praghav/modelgate/pkg/models"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// ErrUnauthenticated is returned when no active credential matches the
// presented secret, or no secret was presented at all.
var ErrUnauthenticated = errors.New("invalid or missing credential")

// Verifier validates presented secrets and owns the verification cache.
type Verifier struct {
	store       store.Store
	cache       cache.Cache
	cacheTTL    time.Duration
	concurrency int64
}

// NewVerifier creates a Verifier.
func NewVerifier(s store.Store, c cache.Cache, cfg config.AuthConfig) *Verifier {
	concurrency := int64(cfg.VerifyConcurrency)
	if concurrency < 1 {
		concurrency = 1
	}
	return &Verifier{
		store:       s,
		cache:       c,
		cacheTTL:    cfg.CacheTTL,
		concurrency: concurrency,
	}
}

// Verify resolves a presented secret to its active credential.
//
// The fast path looks up sha256(secret) in the cache and only re-checks that
// the cached credential is still active. On a miss, every active credential's
// hash is compared concurrently, bounded by the configured limit; the first
// match cancels the remaining comparisons.
func (v *Verifier) Verify(ctx context.Context, secret string) (*models.Credential, error) {
	if secret == "" {
		return nil, ErrUnauthenticated
	}

	digest := secretDigest(secret)
	cacheKey := cache.VerificationKey(digest)

	if cred := v.lookupCached(ctx, cacheKey); cred != nil {
		return cred, nil
	}

	creds, err := v.store.ListActiveCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active credentials: %w", err)
	}
	if len(creds) == 0 {
		return nil, ErrUnauthenticated
	}

	matched := v.race(ctx, secret, creds)
	if matched == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrUnauthenticated
	}

	// Only the confirmed winner ever reaches the cache, and only as a digest
	// mapping; the plaintext secret is never stored.
	if err := v.cache.Set(ctx, cacheKey, []byte(matched.ID.String()), v.cacheTTL); err != nil {
		return matched, nil
	}

	go v.store.UpdateCredentialLastUsed(context.Background(), matched.ID)

	return matched, nil
}

// lookupCached returns the credential for a cached digest, or nil when the
// entry is absent or no longer resolves to an active credential. A stale
// entry is dropped so the caller falls through to full verification.
func (v *Verifier) lookupCached(ctx context.Context, cacheKey string) *models.Credential {
	raw, ok, err := v.cache.Get(ctx, cacheKey)
	if err != nil || !ok {
		return nil
	}

	id, err := uuid.Parse(string(raw))
	if err != nil {
		_ = v.cache.Delete(ctx, cacheKey)
		return nil
	}

	cred, err := v.store.GetCredential(ctx, id)
	if err != nil || !cred.Active {
		_ = v.cache.Delete(ctx, cacheKey)
		return nil
	}
	return cred
}

// race runs bounded-parallel bcrypt comparisons and returns the first match,
// or nil. The first positive match cancels the race context: comparisons not
// yet started never start, and finished losers are discarded.
func (v *Verifier) race(ctx context.Context, secret string, creds []*models.Credential) *models.Credential {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(v.concurrency)
	matches := make(chan *models.Credential, 1)

	var wg sync.WaitGroup
	for _, cred := range creds {
		// Acquire fails once the race context is cancelled, which stops
		// launching new comparisons as soon as a match is found.
		if err := sem.Acquire(raceCtx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(cred *models.Credential) {
			defer wg.Done()
			defer sem.Release(1)
			if raceCtx.Err() != nil {
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(cred.KeyHash), []byte(secret)) == nil {
				select {
				case matches <- cred:
					cancel()
				default:
				}
			}
		}(cred)
	}

	go func() {
		wg.Wait()
		close(matches)
	}()

	return <-matches
}

func secretDigest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
