// Package ratelimit wraps golang.org/x/time/rate for per-session inbound
// WebSocket flow control, grounded on the service_layer reference repo's
// infrastructure/middleware.RateLimiter (the same per-key limiter map
// pattern, narrowed from per-IP HTTP limiting to per-session WS limiting).
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Registry hands out one token-bucket limiter per session id, lazily
// created on first use and cleaned up when a session disconnects.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// New builds a Registry where each session may send up to
// messagesPerSecond inbound frames, with a short burst allowance.
func New(messagesPerSecond, burst int) *Registry {
	return &Registry{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(messagesPerSecond),
		burst:    burst,
	}
}

// Allow reports whether sessionID may send another message right now,
// lazily creating its limiter on first call.
func (r *Registry) Allow(sessionID string) bool {
	return r.limiterFor(sessionID).Allow()
}

func (r *Registry) limiterFor(sessionID string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(r.rate, r.burst)
		r.limiters[sessionID] = l
	}
	return l
}

// Drop releases the limiter for a disconnected session.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, sessionID)
}

// Count reports the number of tracked limiters (diagnostics).
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
