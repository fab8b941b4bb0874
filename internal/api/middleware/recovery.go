package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/praghav/modelgate/internal/api/response"
)

// Recovery converts panics into 500 responses. Provider adapters and the
// orchestrator run inside the request goroutine, so a panic there must not
// take the server down.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				attrs := []any{
					"error", err,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				}
				if cred, ok := GetCredential(r); ok {
					attrs = append(attrs, "owner_id", cred.OwnerID)
				}
				slog.Error("panic recovered", attrs...)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
