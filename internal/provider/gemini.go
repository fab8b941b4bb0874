package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/praghav/modelgate/internal/config"
)

const geminiCostPer1K = 0.1875

// GeminiProvider implements Provider against the Google Gemini
// generateContent API.
type GeminiProvider struct {
	cfg    config.GeminiConfig
	client *http.Client
}

func NewGeminiProvider(cfg config.GeminiConfig) *GeminiProvider {
	return &GeminiProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (p *GeminiProvider) Infer(ctx context.Context, prompt string, maxTokens int) (*Result, error) {
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: maxTokens},
	})
	if err != nil {
		return nil, Permanent("encode request: %v", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.cfg.BaseURL, p.cfg.Model, p.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, Permanent("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, Temporary("gemini request failed: %v", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus("gemini", resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, Temporary("decode gemini response: %v", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, Temporary("gemini returned no candidates")
	}

	tokens := parsed.UsageMetadata.TotalTokenCount
	return &Result{
		Text:       parsed.Candidates[0].Content.Parts[0].Text,
		TokensUsed: tokens,
		LatencyMs:  float64(time.Since(start).Microseconds()) / 1000.0,
		Model:      p.cfg.Model,
		Cost:       p.EstimateCost(tokens),
		Provider:   p.Name(),
	}, nil
}

func (p *GeminiProvider) EstimateCost(tokens int) float64 {
	return float64(tokens) / 1000.0 * geminiCostPer1K
}

// IsHealthy probes the model listing endpoint with a short deadline.
func (p *GeminiProvider) IsHealthy(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/models?key=%s", p.cfg.BaseURL, p.cfg.APIKey)
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

var _ Provider = (*GeminiProvider)(nil)
