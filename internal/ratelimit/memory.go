package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory keeps a counter per key and drops every counter at the end of each
// window. It is local to one process.
type Memory struct {
	cfg Config

	mu     sync.Mutex
	counts map[string]int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewMemory starts the janitor goroutine; call Stop to release it.
func NewMemory(cfg Config) *Memory {
	m := &Memory{
		cfg:    cfg,
		counts: make(map[string]int),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *Memory) Allow(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[key] >= m.cfg.Limit {
		return false
	}
	m.counts[key]++
	return true
}

func (m *Memory) Window() time.Duration { return m.cfg.Window }

func (m *Memory) janitor() {
	defer close(m.done)
	t := time.NewTicker(m.cfg.Window)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.reset()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) reset() {
	m.mu.Lock()
	m.counts = make(map[string]int)
	m.mu.Unlock()
}

// Stop ends the janitor and waits for it. Safe to call more than once.
func (m *Memory) Stop() {
	m.once.Do(func() { close(m.stop) })
	<-m.done
}
