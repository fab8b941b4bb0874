package provider

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const (
	mockCostPerToken = 0.0001
	mockModel        = "mock-v1"
	mockPreviewLen   = 50
)

// MockProvider simulates an inference backend without any network calls.
// The zero value is healthy and always succeeds; the injection fields flip
// behavior for tests.
type MockProvider struct {
	// Name_ overrides the provider name when non-empty.
	Name_ string
	// Delay is the simulated inference latency.
	Delay time.Duration
	// InferErr, when set, is returned from every Infer call.
	InferErr error
	// Unhealthy makes IsHealthy report false.
	Unhealthy bool

	inferCalls  atomic.Int64
	healthCalls atomic.Int64
}

// NewMockProvider returns a mock provider with a small simulated latency.
func NewMockProvider() *MockProvider {
	return &MockProvider{Delay: 10 * time.Millisecond}
}

func (p *MockProvider) Name() string {
	if p.Name_ != "" {
		return p.Name_
	}
	return "mock"
}

// Infer echoes a preview of the prompt. Token usage is derived from the
// prompt's word count, capped at maxTokens.
func (p *MockProvider) Infer(ctx context.Context, prompt string, maxTokens int) (*Result, error) {
	p.inferCalls.Add(1)
	start := time.Now()

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, Temporary("mock inference cancelled: %v", ctx.Err())
		}
	}

	if p.InferErr != nil {
		return nil, p.InferErr
	}

	preview := prompt
	if len(preview) > mockPreviewLen {
		preview = preview[:mockPreviewLen]
	}
	preview = strings.TrimSpace(preview)

	tokens := len(strings.Fields(prompt)) * 2
	if tokens > maxTokens {
		tokens = maxTokens
	}

	return &Result{
		Text:       fmt.Sprintf("Mock response to: %q (%d tokens max)", preview, maxTokens),
		TokensUsed: tokens,
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000.0,
		Model:      mockModel,
		Cost:       p.EstimateCost(tokens),
		Provider:   p.Name(),
	}, nil
}

func (p *MockProvider) EstimateCost(tokens int) float64 {
	return float64(tokens) * mockCostPerToken
}

func (p *MockProvider) IsHealthy(_ context.Context) bool {
	p.healthCalls.Add(1)
	return !p.Unhealthy
}

// InferCalls returns how many times Infer was invoked.
func (p *MockProvider) InferCalls() int64 { return p.inferCalls.Load() }

// HealthCalls returns how many times IsHealthy was invoked.
func (p *MockProvider) HealthCalls() int64 { return p.healthCalls.Load() }

var _ Provider = (*MockProvider)(nil)
