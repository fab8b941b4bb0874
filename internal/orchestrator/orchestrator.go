// Package orchestrator executes a selected provider and walks the fallback
// order on failure.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/praghav/modelgate/internal/metrics"
	"github.com/praghav/modelgate/internal/provider"
	"github.com/praghav/modelgate/pkg/models"
)

// ErrFallbacksExhausted is returned after every candidate in the fallback
// order has been attempted without success.
var ErrFallbacksExhausted = errors.New("all fallback providers exhausted")

// Request carries the inference parameters and the attribution fields for
// outcome records.
type Request struct {
	OwnerID        uuid.UUID
	ModelRequested string
	Prompt         string
	MaxTokens      int
}

// Orchestrator attempts providers in order: the selected one first, then the
// configured fallback order. Each candidate is attempted at most once; the
// retry unit here is "move to the next provider"; per-provider retry and
// backoff belong to the adapters.
type Orchestrator struct {
	registry       *provider.Registry
	monitor        *provider.Monitor
	sink           metrics.Sink
	fallbackOrder  []string
	attemptTimeout time.Duration
}

// New creates an Orchestrator.
func New(registry *provider.Registry, monitor *provider.Monitor, sink metrics.Sink, fallbackOrder []string, attemptTimeout time.Duration) *Orchestrator {
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}
	return &Orchestrator{
		registry:       registry,
		monitor:        monitor,
		sink:           sink,
		fallbackOrder:  fallbackOrder,
		attemptTimeout: attemptTimeout,
	}
}

// Execute runs the request against selected, falling back on failure.
//
// A permanent failure is never retried against the same provider but still
// permits trying the next distinct candidate: provider A rejecting the
// request says nothing about provider B. One outcome record is emitted per
// attempt. The first success short-circuits the chain.
func (o *Orchestrator) Execute(ctx context.Context, selected string, req Request) (*provider.Result, error) {
	tried := make(map[string]bool, len(o.fallbackOrder)+1)

	candidates := make([]string, 0, len(o.fallbackOrder)+1)
	candidates = append(candidates, selected)
	candidates = append(candidates, o.fallbackOrder...)

	for _, name := range candidates {
		if tried[name] {
			continue
		}
		tried[name] = true

		p, ok := o.registry.Get(name)
		if !ok {
			continue
		}

		result, err := o.attempt(ctx, p, req)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("provider attempt failed",
			"provider", name,
			"error_kind", errorKind(err),
			"error", err,
		)
	}

	return nil, ErrFallbacksExhausted
}

// attempt runs a single provider once. An unhealthy provider and a timed-out
// call are both treated as temporary failures.
func (o *Orchestrator) attempt(ctx context.Context, p provider.Provider, req Request) (*provider.Result, error) {
	name := p.Name()

	if !p.IsHealthy(ctx) {
		o.monitor.MarkUnhealthy(name)
		err := provider.Temporary("%s reported unhealthy", name)
		o.recordFailure(req, name, 0, err)
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.Infer(attemptCtx, req.Prompt, req.MaxTokens)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			err = provider.Temporary("%s timed out after %s", name, o.attemptTimeout)
		}
		o.recordFailure(req, name, latencyMs, err)
		return nil, err
	}

	result.LatencyMs = latencyMs
	o.monitor.Observe(name, latencyMs)
	o.sink.Record(models.RequestOutcome{
		OwnerID:        req.OwnerID,
		ModelRequested: req.ModelRequested,
		ProviderUsed:   name,
		LatencyMs:      latencyMs,
		TokensUsed:     result.TokensUsed,
		Cost:           result.Cost,
		Status:         models.OutcomeSuccess,
		ErrorKind:      models.ErrorKindNone,
	})
	return result, nil
}

func (o *Orchestrator) recordFailure(req Request, providerName string, latencyMs float64, err error) {
	o.sink.Record(models.RequestOutcome{
		OwnerID:        req.OwnerID,
		ModelRequested: req.ModelRequested,
		ProviderUsed:   providerName,
		LatencyMs:      latencyMs,
		Status:         models.OutcomeFailure,
		ErrorKind:      errorKind(err),
	})
}

// errorKind maps a classified provider error to the outcome taxonomy.
// Unclassified errors count as temporary so the chain keeps moving.
func errorKind(err error) string {
	if provider.IsPermanent(err) {
		return models.ErrorKindPermanent
	}
	return models.ErrorKindTemporary
}
