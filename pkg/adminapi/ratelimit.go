// Copyright 2025 Takhin Data, Inc.

package adminapi

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginLimiter gates /v1/auth/login by source IP, the way the retrieval
// pack's bandwidth limiters gate a single resource per key. It caps an
// attacker to a slow trickle of guesses against the shared operator
// secret without affecting the already-authenticated stats/config/stream
// routes.
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Every(2 * time.Second),
		burst:    5,
	}
}

func (l *loginLimiter) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
		l.limiters[host] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// Middleware rejects requests once the caller's IP has exhausted its
// login attempt burst.
func (l *loginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}
