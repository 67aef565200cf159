// Package llmgateway is the single point through which every prompt
// reaches a model. It substitutes template variables, consults the
// rate limiter and circuit breaker, invokes the active provider,
// retries and fails over on transient errors, and cleans the answer
// before returning it.
package llmgateway

import (
	"net/http"
	"sync"
)

// Message is one turn of a chat-style prompt.
type Message struct {
	Role    string
	Content string
}

// TokenUsage reports provider-side accounting, when available.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a provider's parsed reply.
type Response struct {
	Content      string
	Model        string
	Usage        TokenUsage
	FinishReason string
}

// Provider implements one backend's wire format. Every provider here
// is invoked as a single blocking request; whether the gateway treats
// the reply as having a reasoning/answer split (Config.Streaming) is
// the gateway's concern, not the provider's.
type Provider interface {
	// Name returns the provider identifier (e.g. "anthropic", "openai", "ollama").
	Name() string

	// BuildURL constructs the full API endpoint from a configured base URL.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific headers, including authentication.
	SetHeaders(req *http.Request)

	// BuildRequestBody creates the JSON request body for a single turn.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts a Response from a non-streaming reply body.
	ParseResponse(body []byte, model string) (*Response, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Provider)
)

// Register adds a provider under its own Name(). Later registrations
// for the same name replace earlier ones.
func Register(p Provider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p.Name()] = p
}

// Get retrieves a registered provider by name, or nil if unknown.
func Get(name string) Provider {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// Names lists every registered provider.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
