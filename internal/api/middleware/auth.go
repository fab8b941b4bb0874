package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/praghav/modelgate/internal/api/response"
	"github.com/praghav/modelgate/internal/auth"
)

// Auth provides credential verification middleware.
type Auth struct {
	verifier *auth.Verifier
}

// NewAuth creates a new Auth middleware.
func NewAuth(v *auth.Verifier) *Auth {
	return &Auth{verifier: v}
}

// Authenticate extracts the presented secret, verifies it, and sets the
// matched credential in the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := extractSecret(r)
		if secret == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_CREDENTIAL", "Missing API credential", nil)
			return
		}

		cred, err := a.verifier.Verify(r.Context(), secret)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_CREDENTIAL", "Invalid API credential", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to verify credential", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetCredential(r.Context(), cred)))
	})
}

// extractSecret reads the credential from X-API-Key, or from an
// Authorization header with an optional Bearer prefix.
func extractSecret(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(header)
}
