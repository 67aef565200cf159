package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitSpacesConsecutiveCalls(t *testing.T) {
	l := New(10*time.Millisecond, nil)
	ctx := context.Background()

	require := assert.New(t)
	require.NoError(l.Wait(ctx, "groq"))
	t1 := time.Now()
	require.NoError(l.Wait(ctx, "groq"))
	t2 := time.Now()

	assert.GreaterOrEqual(t, t2.Sub(t1), l.Delay("groq"))
}

func TestUnknownProviderUsesDefaultDelay(t *testing.T) {
	l := New(5*time.Millisecond, map[string]time.Duration{"groq": 50 * time.Millisecond})
	assert.Equal(t, 5*time.Millisecond, l.Delay("unknown-provider"))
	assert.Equal(t, 50*time.Millisecond, l.Delay("groq"))
}

func TestPerProviderIndependence(t *testing.T) {
	l := New(20*time.Millisecond, nil)
	ctx := context.Background()

	start := time.Now()
	assert := assert.New(t)
	assert.NoError(l.Wait(ctx, "a"))
	assert.NoError(l.Wait(ctx, "b"))
	elapsed := time.Since(start)
	// A fresh provider should not inherit another provider's wait time.
	assert.Less(elapsed, 20*time.Millisecond)
}
