package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/bookforge/bookforge/internal/resilience"
)

// RetryConfig binds RETRY_* to internal/resilience.RetryConfig. Timeout
// is loaded from RETRY_TIMEOUT and validated, but ToResilience does not
// carry it over and no provider call is bounded by it.
type RetryConfig struct {
	MaxRetries int           `validate:"min=0,max=10"`
	Timeout    time.Duration `validate:"min=1s,max=1h"`
	BaseDelay  time.Duration `validate:"min=0"`
	MaxDelay   time.Duration `validate:"min=0"`
	Strategy   resilience.BackoffStrategy
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		Timeout:    60 * time.Second,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Strategy:   resilience.Exponential,
	}
}

func loadRetryConfig(env lookup) RetryConfig {
	cfg := defaultRetryConfig()
	cfg.MaxRetries = env.int("RETRY_MAX_ATTEMPTS", cfg.MaxRetries)
	cfg.Timeout = env.seconds("RETRY_TIMEOUT", cfg.Timeout)
	cfg.BaseDelay = env.secondsFloat("RETRY_BASE_DELAY", cfg.BaseDelay)
	cfg.MaxDelay = env.secondsFloat("RETRY_MAX_DELAY", cfg.MaxDelay)
	cfg.Strategy = parseBackoffStrategy(env.str("RETRY_BACKOFF_STRATEGY", "exponential"))
	return cfg
}

func parseBackoffStrategy(s string) resilience.BackoffStrategy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return resilience.Linear
	case "fixed":
		return resilience.Fixed
	default:
		return resilience.Exponential
	}
}

func (c RetryConfig) ToResilience() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BaseDelay,
		MaxDelay:   c.MaxDelay,
		Strategy:   c.Strategy,
		Jitter:     true,
	}
}

// RateLimitConfig binds RATE_LIMIT_DEFAULT_DELAY and
// RATE_LIMIT_<PROVIDER>_DELAY.
type RateLimitConfig struct {
	DefaultDelay   time.Duration
	ProviderDelays map[string]time.Duration
}

var knownProviders = []string{"openai", "groq", "deepseek", "anthropic", "ollama"}

func loadRateLimitConfig(env lookup) RateLimitConfig {
	cfg := RateLimitConfig{
		DefaultDelay: 500 * time.Millisecond,
		ProviderDelays: map[string]time.Duration{
			"openai":    time.Second,
			"groq":      500 * time.Millisecond,
			"deepseek":  time.Second,
			"anthropic": time.Second,
			"ollama":    100 * time.Millisecond,
		},
	}
	cfg.DefaultDelay = env.secondsFloat("RATE_LIMIT_DEFAULT_DELAY", cfg.DefaultDelay)
	for _, provider := range knownProviders {
		key := "RATE_LIMIT_" + strings.ToUpper(provider) + "_DELAY"
		cfg.ProviderDelays[provider] = env.secondsFloat(key, cfg.ProviderDelays[provider])
	}
	return cfg
}

// ContextConfig binds CONTEXT_* to internal/bookcontext.Config.
type ContextConfig struct {
	LimitedSize           int
	StandardSize          int
	MaxAccumulation       int
	EnableMicroSummaries  bool
	MicroSummaryInterval  int
}

func loadContextConfig(env lookup) ContextConfig {
	return ContextConfig{
		LimitedSize:          env.int("CONTEXT_LIMITED_SIZE", 2000),
		StandardSize:         env.int("CONTEXT_STANDARD_SIZE", 8000),
		MaxAccumulation:      env.int("CONTEXT_MAX_ACCUMULATION", 5000),
		EnableMicroSummaries: env.bool("CONTEXT_ENABLE_MICRO_SUMMARIES", true),
		MicroSummaryInterval: env.int("CONTEXT_MICRO_SUMMARY_INTERVAL", 3),
	}
}

// LLMConfig binds LLM_* to the per-call sampling parameters the gateway passes
// through to a provider's BuildRequestBody.
type LLMConfig struct {
	Temperature   float64
	Streaming     bool
	TopK          int
	TopP          float64
	RepeatPenalty float64
}

func loadLLMConfig(env lookup) LLMConfig {
	return LLMConfig{
		Temperature:   env.float("LLM_TEMPERATURE", 0.7),
		Streaming:     env.bool("LLM_STREAMING", true),
		TopK:          env.int("LLM_TOP_K", 50),
		TopP:          env.float("LLM_TOP_P", 0.9),
		RepeatPenalty: env.float("LLM_REPEAT_PENALTY", 1.1),
	}
}

// SegmentConfig binds SEGMENT_* to internal/segment.Config.
type SegmentConfig struct {
	Strategy        string
	MaxCount        int
	BaseLength      int
	AdaptiveScaling bool
}

func loadSegmentConfig(env lookup) SegmentConfig {
	return SegmentConfig{
		Strategy:        env.str("SEGMENT_EXTRACTION_STRATEGY", "adaptive"),
		MaxCount:        env.int("SEGMENT_MAX_COUNT", 3),
		BaseLength:      env.int("SEGMENT_BASE_LENGTH", 1000),
		AdaptiveScaling: env.bool("SEGMENT_ADAPTIVE_SCALING", true),
	}
}

// ConcurrencyConfig binds CONCURRENCY_* to the fan-out bound idea generation uses
// when generating per-chapter ideas.
type ConcurrencyConfig struct {
	MaxConcurrentIdeaWorkers int
}

func loadConcurrencyConfig(env lookup) ConcurrencyConfig {
	return ConcurrencyConfig{
		MaxConcurrentIdeaWorkers: env.int("CONCURRENCY_MAX_IDEA_WORKERS", 4),
	}
}

// lookup is a thin wrapper over os.Getenv giving each config section a
// typed accessor with a default.
type lookup func(key string) (string, bool)

func (l lookup) str(key, def string) string {
	if v, ok := l(key); ok && v != "" {
		return v
	}
	return def
}

func (l lookup) int(key string, def int) int {
	if v, ok := l(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (l lookup) float(key string, def float64) float64 {
	if v, ok := l(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (l lookup) bool(key string, def bool) bool {
	if v, ok := l(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func (l lookup) seconds(key string, def time.Duration) time.Duration {
	return time.Duration(l.int(key, int(def/time.Second))) * time.Second
}

func (l lookup) secondsFloat(key string, def time.Duration) time.Duration {
	seconds := l.float(key, def.Seconds())
	return time.Duration(seconds * float64(time.Second))
}
