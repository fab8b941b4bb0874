package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// VerificationKey maps a secret digest to a credential ID. Only the SHA-256
// digest of the presented secret appears in the key, never the plaintext.
func VerificationKey(secretDigest string) string {
	return fmt.Sprintf("verify:%s", secretDigest)
}

// RateLimitKey is the fixed-window counter key for a credential. windowStart
// is the Unix timestamp of the window boundary so each window gets its own
// counter.
func RateLimitKey(credentialID uuid.UUID, windowStart int64) string {
	return fmt.Sprintf("ratelimit:%s:%d", credentialID, windowStart)
}
