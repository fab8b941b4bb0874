package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/praghav/modelgate/internal/admission"
	"github.com/praghav/modelgate/internal/api/response"
)

// Admission applies per-credential rate limiting via the admission controller.
type Admission struct {
	controller *admission.Controller
}

// NewAdmission creates a new Admission middleware.
func NewAdmission(c *admission.Controller) *Admission {
	return &Admission{controller: c}
}

// Limit admits or rejects the request based on the credential set by the
// auth middleware. A counter-backend failure fails open.
func (m *Admission) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, ok := GetCredential(r)
		if !ok {
			// Auth middleware didn't run; pass through.
			next.ServeHTTP(w, r)
			return
		}

		decision, err := m.controller.Admit(r.Context(), cred)
		if err != nil && !errors.Is(err, admission.ErrRateLimited) {
			slog.Warn("admission check failed, allowing request", "error", err, "credential_id", cred.ID)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))

		if errors.Is(err, admission.ErrRateLimited) {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", map[string]any{
					"retry_after_seconds": retryAfter,
				})
			return
		}

		next.ServeHTTP(w, r)
	})
}
