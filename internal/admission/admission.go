// Package admission enforces per-credential request-rate ceilings over fixed
// time windows, backed by atomic Redis counters.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/praghav/modelgate/internal/cache"
	"github.com/praghav/modelgate/internal/config"
	"github.com/praghav/modelgate/pkg/models"
)

// ErrRateLimited is returned when a credential has exhausted its ceiling for
// the active window. The accompanying Decision carries the retry hint.
var ErrRateLimited = errors.New("rate limit exceeded")

// tierDefaults is the explicit requests-per-window ceiling per rate tier,
// applied when a credential has no per-credential override. A credential on
// an unknown tier gets the free ceiling, never an unbounded one.
var tierDefaults = map[string]int{
	models.TierFree:     30,
	models.TierStandard: 100,
	models.TierPro:      300,
}

// Decision reports the outcome of an admission check.
type Decision struct {
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Controller performs fixed-window admission checks.
type Controller struct {
	cache  cache.Cache
	window time.Duration
}

// NewController creates a Controller.
func NewController(c cache.Cache, cfg config.RateLimitConfig) *Controller {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &Controller{cache: c, window: window}
}

// Admit checks and counts one request for the credential. The counter key is
// scoped to the window start, so each window begins at zero; increment and
// check are a single atomic operation, safe under concurrent evaluation.
//
// Returns ErrRateLimited (with a populated Decision) once the ceiling is
// exceeded. Any other error means the counter backend failed; the caller
// decides whether to fail open.
func (c *Controller) Admit(ctx context.Context, cred *models.Credential) (*Decision, error) {
	ceiling := ceilingFor(cred)

	now := time.Now().UTC()
	windowStart := now.Truncate(c.window)
	resetAt := windowStart.Add(c.window)

	key := cache.RateLimitKey(cred.ID, windowStart.Unix())
	count, err := c.cache.IncrWithExpiry(ctx, key, c.window)
	if err != nil {
		return nil, fmt.Errorf("increment rate counter: %w", err)
	}

	decision := &Decision{
		Limit:     ceiling,
		Remaining: ceiling - int(count),
		ResetAt:   resetAt,
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}

	if int(count) > ceiling {
		decision.RetryAfter = resetAt.Sub(now)
		return decision, ErrRateLimited
	}
	return decision, nil
}

// Window returns the configured window length.
func (c *Controller) Window() time.Duration {
	return c.window
}

func ceilingFor(cred *models.Credential) int {
	if cred.RateLimit != nil && *cred.RateLimit > 0 {
		return *cred.RateLimit
	}
	if ceiling, ok := tierDefaults[cred.RateTier]; ok {
		return ceiling
	}
	return tierDefaults[models.TierFree]
}
