package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praghav/modelgate/internal/store"
	"github.com/praghav/modelgate/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const rawSecretBytes = 32

// Issue generates a new credential for the given owner and stores its bcrypt
// hash. The raw secret is returned exactly once; it cannot be recovered later.
func Issue(ctx context.Context, s store.Store, ownerID uuid.UUID, tier string) (string, *models.Credential, error) {
	buf := make([]byte, rawSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash secret: %w", err)
	}

	now := time.Now().UTC()
	cred := &models.Credential{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		KeyHash:   string(hash),
		RateTier:  tier,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateCredential(ctx, cred); err != nil {
		return "", nil, fmt.Errorf("store credential: %w", err)
	}
	return secret, cred, nil
}
