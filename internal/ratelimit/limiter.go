// Package ratelimit implements fixed window request limiting keyed by an
// arbitrary string, usually the client IP.
package ratelimit

import (
	"context"
	"time"
)

type Limiter interface {
	// Allow counts one hit for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) bool
	// Window is the length of one counting window.
	Window() time.Duration
}

type Config struct {
	Scope  string
	Limit  int
	Window time.Duration
}
