// Package provider defines the capability contract every inference backend
// must satisfy, and the failure classification the orchestrator acts on.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Provider is the core interface all inference backends must implement.
// Never call specific backends directly; always inject this interface.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string
	// Infer generates a completion for the prompt.
	Infer(ctx context.Context, prompt string, maxTokens int) (*Result, error)
	// EstimateCost estimates the cost in USD for the given token usage.
	EstimateCost(tokens int) float64
	// IsHealthy reports whether the backend is currently reachable.
	IsHealthy(ctx context.Context) bool
}

// Result is the output of a single successful inference.
type Result struct {
	Text       string
	TokensUsed int
	LatencyMs  float64
	Model      string
	Cost       float64
	Provider   string
}

// TemporaryError marks a transient upstream failure (timeout, rate limit,
// infrastructure hiccup). Eligible for fallback.
type TemporaryError struct {
	Err error
}

func (e *TemporaryError) Error() string { return "temporary provider error: " + e.Err.Error() }
func (e *TemporaryError) Unwrap() error { return e.Err }

// PermanentError marks a non-retryable upstream failure (malformed request,
// authorization failure). Never retried against the same provider.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent provider error: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Temporary wraps a formatted message as a TemporaryError.
func Temporary(format string, args ...any) error {
	return &TemporaryError{Err: fmt.Errorf(format, args...)}
}

// Permanent wraps a formatted message as a PermanentError.
func Permanent(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsTemporary reports whether err is classified as transient. Classification
// happens at the adapter boundary; callers must not re-derive it from
// message text.
func IsTemporary(err error) bool {
	var t *TemporaryError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is classified as non-retryable.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// classifyStatus maps an upstream HTTP status to the failure taxonomy:
// rate limiting, timeouts, and server errors are transient; every other
// non-2xx status is a caller problem and permanent.
func classifyStatus(name string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 429, status == 408, status >= 500:
		return Temporary("%s returned status %d", name, status)
	default:
		return Permanent("%s returned status %d", name, status)
	}
}
