// Package config loads every tunable of the generation pipeline from
// an optional on-disk YAML file plus environment variables, validates
// the result, and hands back a single Config record. The file is a
// template: any field the process environment also sets is overridden
// by the environment, following the usual .env convenience load before
// the process environment is consulted.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ProviderConfig is one entry of the provider chain: its API key, base
// URL, and selected model, each read from <PROVIDER>_API_KEY,
// <PROVIDER>_API_BASE, <PROVIDER>_MODEL.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// Config is the fully loaded, validated configuration for one run.
type Config struct {
	// ModelType and SelectedModel name the default provider:model pair;
	// a per-request `model` field overrides this.
	ModelType     string `validate:"required"`
	SelectedModel string

	ProviderChain []string `validate:"required,min=1"`
	Providers     map[string]ProviderConfig

	Retry       RetryConfig
	RateLimit   RateLimitConfig
	Context     ContextConfig
	LLM         LLMConfig
	Segment     SegmentConfig
	Concurrency ConcurrencyConfig

	OutputDir string `validate:"required"`
}

// Load reads .env (if present), then the on-disk YAML config file (if
// present), then the process environment, into a validated Config.
// Env vars always win over the file, and the file is itself optional:
// the process environment alone is a complete configuration. Load
// does not prompt interactively: a misconfigured provider chain is a
// startup error, not a recoverable condition.
func Load() (*Config, error) {
	_ = godotenv.Load()

	osEnv := lookup(func(key string) (string, bool) {
		v, ok := os.LookupEnv(key)
		return v, ok
	})

	fileDefaults, err := loadFileDefaults(configFilePath(osEnv))
	if err != nil {
		return nil, err
	}
	env := withFileDefaults(osEnv, fileDefaults)

	cfg := &Config{
		ModelType:     env.str("MODEL_TYPE", "ollama"),
		SelectedModel: env.str("SELECTED_MODEL", ""),
		ProviderChain: parseProviderChain(env),
		Providers:     make(map[string]ProviderConfig),
		Retry:         loadRetryConfig(env),
		RateLimit:     loadRateLimitConfig(env),
		Context:       loadContextConfig(env),
		LLM:           loadLLMConfig(env),
		Segment:       loadSegmentConfig(env),
		Concurrency:   loadConcurrencyConfig(env),
		OutputDir:     env.str("OUTPUT_DIR", "./docs"),
	}

	for _, provider := range cfg.ProviderChain {
		cfg.Providers[provider] = loadProviderConfig(env, provider)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// parseProviderChain reads PROVIDER_CHAIN as a comma-separated list,
// falling back to a chain containing only MODEL_TYPE.
func parseProviderChain(env lookup) []string {
	raw := env.str("PROVIDER_CHAIN", "")
	if raw == "" {
		return []string{env.str("MODEL_TYPE", "ollama")}
	}
	var chain []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			chain = append(chain, name)
		}
	}
	if len(chain) == 0 {
		chain = []string{env.str("MODEL_TYPE", "ollama")}
	}
	return chain
}

func loadProviderConfig(env lookup, provider string) ProviderConfig {
	upper := strings.ToUpper(provider)
	return ProviderConfig{
		Name:    provider,
		APIKey:  env.str(upper+"_API_KEY", ""),
		BaseURL: env.str(upper+"_API_BASE", ""),
		Model:   env.str(upper+"_MODEL", ""),
	}
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("RETRY_MAX_DELAY must be >= RETRY_BASE_DELAY")
	}
	if c.Context.StandardSize < c.Context.LimitedSize {
		return fmt.Errorf("CONTEXT_STANDARD_SIZE must be >= CONTEXT_LIMITED_SIZE")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		return fmt.Errorf("LLM_TOP_P must be between 0 and 1")
	}
	for _, provider := range c.ProviderChain {
		if strings.EqualFold(provider, "ollama") {
			continue // local provider, no API key required
		}
		if c.Providers[provider].APIKey == "" {
			return fmt.Errorf("provider %q in chain has no API key set (%s_API_KEY)", provider, strings.ToUpper(provider))
		}
	}
	return nil
}
