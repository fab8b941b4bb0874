package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/praghav/modelgate/internal/config"
)

const openaiCostPer1K = 0.375

// OpenAIProvider implements Provider against the OpenAI chat completions API.
type OpenAIProvider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewOpenAIProvider(cfg config.OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

type openaiChatRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Infer(ctx context.Context, prompt string, maxTokens int) (*Result, error) {
	body, err := json.Marshal(openaiChatRequest{
		Model:     p.cfg.Model,
		Messages:  []openaiMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, Permanent("encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, Permanent("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, Temporary("openai request failed: %v", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("openai", resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	var parsed openaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, Temporary("decode openai response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, Temporary("openai returned no choices")
	}

	tokens := parsed.Usage.TotalTokens
	return &Result{
		Text:       parsed.Choices[0].Message.Content,
		TokensUsed: tokens,
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000.0,
		Model:      p.cfg.Model,
		Cost:       p.EstimateCost(tokens),
		Provider:   p.Name(),
	}, nil
}

func (p *OpenAIProvider) EstimateCost(tokens int) float64 {
	return float64(tokens) / 1000.0 * openaiCostPer1K
}

// IsHealthy probes the models endpoint with a short deadline.
func (p *OpenAIProvider) IsHealthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, p.cfg.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

var _ Provider = (*OpenAIProvider)(nil)
