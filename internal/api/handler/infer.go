package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	mw "github.com/praghav/modelgate/internal/api/middleware"
	"github.com/praghav/modelgate/internal/api/response"
	"github.com/praghav/modelgate/internal/idempotency"
	"github.com/praghav/modelgate/internal/orchestrator"
	"github.com/praghav/modelgate/internal/provider"
	"github.com/praghav/modelgate/internal/router"
	"github.com/praghav/modelgate/pkg/models"
)

const (
	maxPromptLen     = 4000
	defaultMaxTokens = 256
	maxMaxTokens     = 4096
)

var modelPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Executor runs an inference against a selected provider, walking the
// fallback chain on failure.
type Executor interface {
	Execute(ctx context.Context, selected string, req orchestrator.Request) (*provider.Result, error)
}

// SnapshotSource exposes the current health and scoring view of all providers.
type SnapshotSource interface {
	Snapshots() []models.ProviderSnapshot
}

// Deduplicator coordinates exactly-once execution for requests that carry an
// Idempotency-Key header.
type Deduplicator interface {
	Begin(ctx context.Context, key string, ownerID uuid.UUID) (*idempotency.Outcome, error)
	Commit(ctx context.Context, key string, ownerID uuid.UUID, resp []byte) error
	Abort(ctx context.Context, key string, ownerID uuid.UUID) error
}

type inferResponse struct {
	Output     string  `json:"output"`
	Provider   string  `json:"provider"`
	LatencyMs  float64 `json:"latency_ms"`
	TokensUsed int     `json:"tokens_used"`
	Model      string  `json:"model"`
}

// NewInferHandler returns an http.HandlerFunc for POST /infer.
func NewInferHandler(exec Executor, snaps SnapshotSource, dedup Deduplicator, known []string) http.HandlerFunc {
	knownProviders := map[string]bool{}
	for _, name := range known {
		knownProviders[name] = true
	}

	return func(w http.ResponseWriter, r *http.Request) {
		cred, ok := mw.GetCredential(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIAL", "Missing credential", nil)
			return
		}

		var req struct {
			Prompt    string `json:"prompt"`
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Prompt == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "prompt is required", nil)
			return
		}
		if len(req.Prompt) > maxPromptLen {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				fmt.Sprintf("prompt must be at most %d characters", maxPromptLen), nil)
			return
		}

		model := req.Model
		if model == "" {
			model = "auto"
		}
		if !modelPattern.MatchString(model) {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"model must match [a-zA-Z0-9_-]+", nil)
			return
		}
		if model != "auto" && !knownProviders[model] {
			response.Error(w, http.StatusBadRequest, "UNKNOWN_PROVIDER",
				fmt.Sprintf("unknown provider %q", model), nil)
			return
		}

		maxTokens := req.MaxTokens
		if maxTokens == 0 {
			maxTokens = defaultMaxTokens
		}
		if maxTokens < 1 || maxTokens > maxMaxTokens {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				fmt.Sprintf("max_tokens must be between 1 and %d", maxMaxTokens), nil)
			return
		}

		// Requests carrying an Idempotency-Key are deduplicated per owner:
		// a completed record replays its stored response without touching
		// any provider.
		idemKey := r.Header.Get("Idempotency-Key")
		if idemKey != "" {
			outcome, err := dedup.Begin(r.Context(), idemKey, cred.OwnerID)
			if err != nil {
				if errors.Is(err, idempotency.ErrConflict) {
					response.Error(w, http.StatusConflict, "IDEMPOTENCY_CONFLICT",
						"A request with this idempotency key is already in progress", nil)
					return
				}
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
				return
			}
			if outcome.Replayed {
				response.Raw(w, http.StatusOK, outcome.Response)
				return
			}
		}

		selected := model
		if model == "auto" {
			var err error
			selected, err = router.Select(snaps.Snapshots(), "", true)
			if err != nil {
				abortPending(r.Context(), dedup, idemKey, cred.OwnerID)
				if errors.Is(err, router.ErrNoHealthyProvider) {
					response.Error(w, http.StatusServiceUnavailable, "NO_HEALTHY_PROVIDER",
						"No healthy providers available", nil)
					return
				}
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
				return
			}
		}

		result, err := exec.Execute(r.Context(), selected, orchestrator.Request{
			OwnerID:        cred.OwnerID,
			ModelRequested: model,
			Prompt:         req.Prompt,
			MaxTokens:      maxTokens,
		})
		if err != nil {
			abortPending(r.Context(), dedup, idemKey, cred.OwnerID)
			if errors.Is(err, orchestrator.ErrFallbacksExhausted) {
				response.Error(w, http.StatusServiceUnavailable, "ALL_PROVIDERS_FAILED",
					"All providers failed for this request", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		body, err := json.Marshal(inferResponse{
			Output:     result.Text,
			Provider:   result.Provider,
			LatencyMs:  result.LatencyMs,
			TokensUsed: result.TokensUsed,
			Model:      result.Provider,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		// The stored bytes are replayed verbatim on later requests with the
		// same key, so commit exactly what goes on the wire.
		if idemKey != "" {
			if err := dedup.Commit(r.Context(), idemKey, cred.OwnerID, body); err != nil {
				slog.Error("idempotency commit failed", "key", idemKey, "error", err)
			}
		}

		response.Raw(w, http.StatusOK, body)
	}
}

func abortPending(ctx context.Context, dedup Deduplicator, key string, ownerID uuid.UUID) {
	if key == "" {
		return
	}
	if err := dedup.Abort(ctx, key, ownerID); err != nil {
		slog.Error("idempotency abort failed", "key", key, "error", err)
	}
}
