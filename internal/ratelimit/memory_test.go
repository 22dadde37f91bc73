package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMemoryLimitPerKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewMemory(Config{Limit: 3, Window: time.Hour})
	defer m.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.True(t, m.Allow(ctx, "10.0.0.1"), "hit %d", i+1)
	}
	assert.False(t, m.Allow(ctx, "10.0.0.1"))
	assert.True(t, m.Allow(ctx, "10.0.0.2"), "other keys have their own counter")

	m.reset()
	assert.True(t, m.Allow(ctx, "10.0.0.1"))
}

func TestMemoryJanitorResets(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewMemory(Config{Limit: 1, Window: 20 * time.Millisecond})
	defer m.Stop()
	ctx := context.Background()

	assert.True(t, m.Allow(ctx, "k"))
	assert.False(t, m.Allow(ctx, "k"))
	assert.Eventually(t, func() bool { return m.Allow(ctx, "k") }, time.Second, 5*time.Millisecond)
}

func TestMemoryConcurrentNeverExceedsLimit(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewMemory(Config{Limit: 50, Window: time.Hour})
	defer m.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Allow(context.Background(), "same") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestMemoryStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := NewMemory(Config{Limit: 1, Window: time.Minute})
	m.Stop()
	m.Stop()
}
