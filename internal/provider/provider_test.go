package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/praghav/modelgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- error classification ---

func TestTemporaryError(t *testing.T) {
	err := Temporary("backend %s down", "x")

	assert.True(t, IsTemporary(err))
	assert.False(t, IsPermanent(err))
	assert.Contains(t, err.Error(), "backend x down")
}

func TestPermanentError(t *testing.T) {
	err := Permanent("rejected")

	assert.True(t, IsPermanent(err))
	assert.False(t, IsTemporary(err))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("attempt failed: %w", Temporary("throttled"))
	assert.True(t, IsTemporary(err))
}

func TestUnclassifiedError(t *testing.T) {
	err := errors.New("plain error")
	assert.False(t, IsTemporary(err))
	assert.False(t, IsPermanent(err))
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
		permanent bool
	}{
		{200, false, false},
		{201, false, false},
		{408, true, false},
		{429, true, false},
		{500, true, false},
		{503, true, false},
		{400, false, true},
		{401, false, true},
		{404, false, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			err := classifyStatus("test", tt.status)
			if !tt.temporary && !tt.permanent {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.temporary, IsTemporary(err))
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

// --- mock provider ---

func TestMockInfer_EchoesPrompt(t *testing.T) {
	p := &MockProvider{}

	result, err := p.Infer(context.Background(), "summarize this document", 100)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "summarize this document")
	assert.Equal(t, "mock", result.Provider)
	assert.Equal(t, mockModel, result.Model)
}

func TestMockInfer_TokensFromWordCount(t *testing.T) {
	p := &MockProvider{}

	result, err := p.Infer(context.Background(), "one two three", 100)
	require.NoError(t, err)
	assert.Equal(t, 6, result.TokensUsed)
	assert.InDelta(t, 6*mockCostPerToken, result.Cost, 1e-12)
}

func TestMockInfer_TokensCappedAtMax(t *testing.T) {
	p := &MockProvider{}

	result, err := p.Infer(context.Background(), "a b c d e f g h", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, result.TokensUsed)
}

func TestMockInfer_LongPromptTruncatedInEcho(t *testing.T) {
	p := &MockProvider{}
	long := ""
	for i := 0; i < 40; i++ {
		long += "word "
	}

	result, err := p.Infer(context.Background(), long, 1000)
	require.NoError(t, err)
	assert.Less(t, len(result.Text), len(long))
}

func TestMockInfer_InjectedError(t *testing.T) {
	p := &MockProvider{InferErr: Temporary("injected")}

	_, err := p.Infer(context.Background(), "prompt", 10)
	assert.True(t, IsTemporary(err))
	assert.EqualValues(t, 1, p.InferCalls())
}

func TestMockInfer_CancelledDuringDelay(t *testing.T) {
	p := &MockProvider{Delay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Infer(ctx, "prompt", 10)
	assert.True(t, IsTemporary(err))
}

func TestMockHealth(t *testing.T) {
	p := &MockProvider{}
	assert.True(t, p.IsHealthy(context.Background()))

	p.Unhealthy = true
	assert.False(t, p.IsHealthy(context.Background()))
	assert.EqualValues(t, 2, p.HealthCalls())
}

// --- registry ---

func TestRegistry_PreservesOrder(t *testing.T) {
	r, err := NewRegistry(
		&MockProvider{Name_: "c"},
		&MockProvider{Name_: "a"},
		&MockProvider{Name_: "b"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "a", "b"}, r.Names())
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(&MockProvider{Name_: "a"}, &MockProvider{Name_: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestRegistry_Get(t *testing.T) {
	r, err := NewRegistry(&MockProvider{Name_: "a"})
	require.NoError(t, err)

	p, ok := r.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "a", p.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

// --- factory ---

func TestNewRegistryFromConfig_BuildsEnabled(t *testing.T) {
	r, err := NewRegistryFromConfig(config.ProvidersConfig{
		Enabled: []string{"mock", "openai", "gemini"},
		OpenAI:  config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: "https://api.openai.com/v1"},
		Gemini:  config.GeminiConfig{APIKey: "g-test", Model: "gemini-2.5-flash", BaseURL: "https://generativelanguage.googleapis.com/v1beta"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mock", "openai", "gemini"}, r.Names())
}

func TestNewRegistryFromConfig_UnknownProvider(t *testing.T) {
	_, err := NewRegistryFromConfig(config.ProvidersConfig{Enabled: []string{"anthropic"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}
