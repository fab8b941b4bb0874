package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ModelGate server.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Idempotency IdempotencyConfig
	Providers   ProvidersConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	// CacheTTL bounds how long a verified secret digest stays mapped to its
	// credential before a full re-verification is forced.
	CacheTTL time.Duration
	// VerifyConcurrency caps simultaneous bcrypt comparisons during a cache
	// miss. bcrypt is deliberately expensive, so the cap matters.
	VerifyConcurrency int
}

type RateLimitConfig struct {
	Window time.Duration
}

type IdempotencyConfig struct {
	// Lease is how long a pending record blocks duplicate keys before it is
	// considered abandoned and reclaimable.
	Lease time.Duration
}

type ProvidersConfig struct {
	Enabled        []string
	FallbackOrder  []string
	AttemptTimeout time.Duration
	ProbeInterval  time.Duration
	OpenAI         OpenAIConfig
	Gemini         GeminiConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

var validProviders = map[string]bool{
	"mock":   true,
	"openai": true,
	"gemini": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("MODELGATE_PORT", 8080),
			Env:  envString("MODELGATE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			CacheTTL:          envDuration("AUTH_CACHE_TTL", 5*time.Minute),
			VerifyConcurrency: envInt("AUTH_VERIFY_CONCURRENCY", 50),
		},
		RateLimit: RateLimitConfig{
			Window: envDuration("RATELIMIT_WINDOW", time.Minute),
		},
		Idempotency: IdempotencyConfig{
			Lease: envDuration("IDEMPOTENCY_LEASE", 60*time.Second),
		},
		Providers: ProvidersConfig{
			Enabled:        envList("PROVIDERS", []string{"mock"}),
			FallbackOrder:  envList("FALLBACK_ORDER", nil),
			AttemptTimeout: envDuration("PROVIDER_ATTEMPT_TIMEOUT", 30*time.Second),
			ProbeInterval:  envDuration("PROVIDER_PROBE_INTERVAL", 30*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			},
			Gemini: GeminiConfig{
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   envString("GEMINI_MODEL", "gemini-2.5-flash"),
				BaseURL: envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			},
		},
	}

	// Fallback order defaults to the enabled providers in declaration order.
	if len(cfg.Providers.FallbackOrder) == 0 {
		cfg.Providers.FallbackOrder = cfg.Providers.Enabled
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Auth.VerifyConcurrency < 1 {
		return fmt.Errorf("AUTH_VERIFY_CONCURRENCY must be at least 1, got %d", c.Auth.VerifyConcurrency)
	}

	if c.RateLimit.Window < time.Second {
		return fmt.Errorf("RATELIMIT_WINDOW must be at least 1s, got %s", c.RateLimit.Window)
	}

	if len(c.Providers.Enabled) == 0 {
		return fmt.Errorf("PROVIDERS must list at least one provider")
	}
	enabled := map[string]bool{}
	for _, name := range c.Providers.Enabled {
		if !validProviders[name] {
			return fmt.Errorf("PROVIDERS must be a subset of mock, openai, gemini; got %q", name)
		}
		enabled[name] = true
	}
	for _, name := range c.Providers.FallbackOrder {
		if !enabled[name] {
			return fmt.Errorf("FALLBACK_ORDER entry %q is not an enabled provider", name)
		}
	}

	if enabled["openai"] && c.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when openai is enabled")
	}
	if enabled["gemini"] && c.Providers.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when gemini is enabled")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
