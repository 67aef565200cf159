package llmgateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bookforge/bookforge/internal/ratelimit"
	"github.com/bookforge/bookforge/internal/resilience"
	"github.com/bookforge/bookforge/internal/sanitizer"
	"github.com/bookforge/bookforge/internal/textclean"
)

// ThoughtObserver is notified of reasoning content extracted from a
// streaming response; it never affects the returned answer.
type ThoughtObserver func(provider, thought string)

// Config configures one Gateway instance.
type Config struct {
	// ProviderChain is tried in order: the first entry is primary, the
	// rest are fallbacks used once the primary's retries are exhausted.
	ProviderChain []string
	BaseURL       map[string]string // per-provider base URL override
	Model         map[string]string // per-provider model name
	Temperature   *float64
	MaxTokens     int
	Streaming     bool
	Retry         resilience.RetryConfig
	Breaker       resilience.BreakerConfig
}

// Gateway is the universal LLM invocation point used by plan chains
// and the writer chain. It is safe for concurrent use.
type Gateway struct {
	cfg      Config
	http     *http.Client
	limiter  *ratelimit.Limiter
	breakers map[string]*resilience.CircuitBreaker
	logger   *slog.Logger
	onThought ThoughtObserver
}

// New builds a Gateway. limiter is shared with the rest of the
// pipeline so every provider call, regardless of caller, is spaced.
func New(cfg Config, limiter *ratelimit.Limiter, onThought ThoughtObserver, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	breakers := make(map[string]*resilience.CircuitBreaker, len(cfg.ProviderChain))
	for _, name := range cfg.ProviderChain {
		breakers[name] = resilience.NewCircuitBreaker(name, cfg.Breaker)
	}
	return &Gateway{
		cfg:       cfg,
		http:      &http.Client{},
		limiter:   limiter,
		breakers:  breakers,
		logger:    logger.With("component", "llmgateway"),
		onThought: onThought,
	}
}

// WithModel returns a shallow copy of g that prefers provider as the
// head of the chain and model as its model name, falling back to the
// rest of g's chain unchanged. Used when a single request overrides
// the configured default (a per-request "model" field), rather than
// building a whole new Gateway per request.
func (g *Gateway) WithModel(provider, model string) *Gateway {
	if provider == "" {
		return g
	}
	chain := []string{provider}
	for _, name := range g.cfg.ProviderChain {
		if name != provider {
			chain = append(chain, name)
		}
	}

	cfg := g.cfg
	cfg.ProviderChain = chain
	cfg.Model = make(map[string]string, len(g.cfg.Model)+1)
	for k, v := range g.cfg.Model {
		cfg.Model[k] = v
	}
	if model != "" {
		cfg.Model[provider] = model
	}

	breakers := g.breakers
	if _, ok := breakers[provider]; !ok {
		breakers = make(map[string]*resilience.CircuitBreaker, len(g.breakers)+1)
		for k, v := range g.breakers {
			breakers[k] = v
		}
		breakers[provider] = resilience.NewCircuitBreaker(provider, g.cfg.Breaker)
	}

	return &Gateway{
		cfg:       cfg,
		http:      g.http,
		limiter:   g.limiter,
		breakers:  breakers,
		logger:    g.logger,
		onThought: g.onThought,
	}
}

// Invoke substitutes vars into template, calls the active provider
// (failing over across the chain as needed), and returns the cleaned
// answer. The returned string never contains reasoning tags or ANSI
// escapes, regardless of provider behavior.
func (g *Gateway) Invoke(ctx context.Context, template string, vars map[string]string) (string, error) {
	prompt, err := Render(template, vars)
	if err != nil {
		return "", err
	}

	var attempted []string
	var lastErr error

	for _, name := range g.cfg.ProviderChain {
		attempted = append(attempted, name)
		breaker := g.breakers[name]

		if err := breaker.Allow(); err != nil {
			if len(g.cfg.ProviderChain) == 1 {
				// A single-provider chain, typically a WithModel
				// override naming one provider explicitly, has
				// nowhere to fail over to: this provider was never
				// even attempted, so it isn't "exhausted", it's
				// unavailable.
				return "", &ProviderUnavailableError{Provider: name, Cause: err}
			}
			g.logger.Warn("provider breaker open, trying next", "provider", name)
			lastErr = err
			continue
		}

		answer, callErr := g.invokeWithRetry(ctx, name, prompt)
		if callErr == nil {
			breaker.RecordSuccess()
			return answer, nil
		}

		breaker.RecordFailure()
		lastErr = callErr
		g.logger.Warn("provider exhausted retries, failing over", "provider", name, "error", callErr)
	}

	return "", &AllProvidersExhaustedError{Attempted: attempted, Last: lastErr}
}

// invokeWithRetry runs the retry loop over a single provider's calls.
func (g *Gateway) invokeWithRetry(ctx context.Context, provider, prompt string) (string, error) {
	var answer string
	err := resilience.RetryWithBackoff(ctx, g.cfg.Retry, resilience.DefaultRetryable, func(attempt int) error {
		if err := g.limiter.Wait(ctx, provider); err != nil {
			return err
		}
		a, err := g.callOnce(ctx, provider, prompt)
		if err != nil {
			return err
		}
		answer = a
		return nil
	})
	return answer, err
}

// callOnce performs exactly one request to provider and returns the
// cleaned answer text.
func (g *Gateway) callOnce(ctx context.Context, provider, prompt string) (string, error) {
	p := Get(provider)
	if p == nil {
		return "", resilience.NewFatalError(fmt.Errorf("unknown provider %q", provider))
	}

	messages := []Message{{Role: "user", Content: prompt}}
	body, err := p.BuildRequestBody(g.cfg.Model[provider], messages, g.cfg.Temperature, g.cfg.MaxTokens)
	if err != nil {
		return "", resilience.NewFatalError(err)
	}

	url := p.BuildURL(g.cfg.BaseURL[provider])
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", resilience.NewFatalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.SetHeaders(req)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", resilience.NewTransientError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resilience.NewTransientError(err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", resilience.NewTransientError(fmt.Errorf("provider %q returned status %d", provider, resp.StatusCode))
	}
	if resp.StatusCode >= 400 {
		return "", resilience.NewFatalError(fmt.Errorf("provider %q returned status %d", provider, resp.StatusCode))
	}

	parsed, err := p.ParseResponse(respBody, g.cfg.Model[provider])
	if err != nil {
		return "", resilience.NewFatalError(&MalformedResponseError{Provider: provider, Cause: err})
	}

	return g.clean(provider, parsed.Content), nil
}

// clean finishes a raw provider answer. When Config.Streaming is set,
// raw is run through the think/answer sanitizer first, the same FSM a
// live token stream would use, so a reasoning model's think-tags are
// split out and forwarded to onThought rather than left in the
// returned text; non-streaming mode skips that split and treats raw
// as answer text throughout. Either way the result then passes
// through the same textclean stages.
func (g *Gateway) clean(provider, raw string) string {
	answerText := raw

	if g.cfg.Streaming {
		var answer, thought bytes.Buffer
		s := sanitizer.New()
		s.OnAnswer = func(delta string) { answer.WriteString(delta) }
		s.OnThought = func(delta string) { thought.WriteString(delta) }
		s.Feed(raw)
		s.Flush()

		if g.onThought != nil && thought.Len() > 0 {
			g.onThought(provider, thought.String())
		}
		answerText = answer.String()
	}

	return textclean.Clean(answerText, []textclean.Stage{
		textclean.ANSICodes, textclean.ThinkTags, textclean.Whitespace,
	})
}
