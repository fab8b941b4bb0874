package provider

import (
	"fmt"

	"github.com/praghav/modelgate/internal/config"
)

// NewRegistryFromConfig constructs the enabled providers in configuration
// order and wraps them in a registry. Called once at server startup.
func NewRegistryFromConfig(cfg config.ProvidersConfig) (*Registry, error) {
	providers := make([]Provider, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		switch name {
		case "mock":
			providers = append(providers, NewMockProvider())
		case "openai":
			providers = append(providers, NewOpenAIProvider(cfg.OpenAI))
		case "gemini":
			providers = append(providers, NewGeminiProvider(cfg.Gemini))
		default:
			return nil, fmt.Errorf("unknown provider %q: must be one of mock, openai, gemini", name)
		}
	}
	return NewRegistry(providers...)
}
