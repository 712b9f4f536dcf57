// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter caps requests per client IP over a sliding window. One
// limiter guards one scope, e.g. "auth" for staff sign-in or "shop" for
// basket and checkout writes.
type RateLimiter struct {
	scope  string
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time

	stop chan struct{}
}

// NewRateLimiter allows limit requests per window for each client in
// scope. Idle clients are forgotten by a background sweep until Stop.
func NewRateLimiter(scope string, limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		scope:  scope,
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go rl.sweepLoop(5 * time.Minute)
	return rl
}

// Stop ends the background sweep.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

func (rl *RateLimiter) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.stop:
			return
		}
	}
}

// take records a hit for client. When the client is over the limit it
// records nothing and returns how long until the oldest hit leaves the
// window.
func (rl *RateLimiter) take(client string) (ok bool, retryAfter time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := prune(rl.hits[client], now.Add(-rl.window))
	if len(recent) >= rl.limit {
		rl.hits[client] = recent
		return false, recent[0].Add(rl.window).Sub(now)
	}
	rl.hits[client] = append(recent, now)
	return true, 0
}

// prune drops hits at or before cutoff. hits is in arrival order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// sweep forgets clients with no hit inside the window.
func (rl *RateLimiter) sweep() {
	cutoff := rl.now().Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for client, hits := range rl.hits {
		if recent := prune(hits, cutoff); len(recent) > 0 {
			rl.hits[client] = recent
		} else {
			delete(rl.hits, client)
		}
	}
}

// Middleware rejects over-limit clients with 429 and a Retry-After in
// whole seconds.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		ok, wait := rl.take(client)
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			slog.Warn("rate limited", "scope", rl.scope, "client", client, "path", r.URL.Path, "retry_after", secs)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the leftmost X-Forwarded-For entry, else X-Real-IP, else the
// connection address without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
