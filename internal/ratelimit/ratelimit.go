// Package ratelimit enforces a minimum spacing between consecutive LLM
// calls to a given provider.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one golang.org/x/time/rate.Limiter per provider and
// falls back to a configured default delay for providers it has not
// seen before.
type Limiter struct {
	mu           sync.Mutex
	perProvider  map[string]*rate.Limiter
	delays       map[string]time.Duration
	defaultDelay time.Duration
}

// New creates a Limiter. defaultDelay is used for any provider not
// present in delays.
func New(defaultDelay time.Duration, delays map[string]time.Duration) *Limiter {
	l := &Limiter{
		perProvider:  make(map[string]*rate.Limiter),
		delays:       make(map[string]time.Duration, len(delays)),
		defaultDelay: defaultDelay,
	}
	for provider, d := range delays {
		l.delays[provider] = d
	}
	return l
}

// Wait blocks until at least delay(provider) has elapsed since the
// previous call for that provider, then returns. It is safe to call
// concurrently for any number of providers.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	return l.limiterFor(provider).Wait(ctx)
}

// Delay reports the configured minimum spacing for a provider.
func (l *Limiter) Delay(provider string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.delays[provider]; ok {
		return d
	}
	return l.defaultDelay
}

func (l *Limiter) limiterFor(provider string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if rl, ok := l.perProvider[provider]; ok {
		return rl
	}

	delay := l.defaultDelay
	if d, ok := l.delays[provider]; ok {
		delay = d
	}
	rl := rate.NewLimiter(rate.Every(delay), 1)
	l.perProvider[provider] = rl
	return rl
}
