// Package middleware carries the entry-point HTTP middleware: a per-second
// token bucket guarding the index snapshot and redis from traffic spikes.
package middleware

import (
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/HSLdevcom/digitransit-geocoder/internal/logger"
)

// TokenBucket refills to capacity once per wall-clock second. Requests over
// the budget are dropped with 429; there is no queueing.
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
}

func (tb *TokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := time.Now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wrap applies rate limiting when RATE_LIMIT_RPS is set to a positive
// integer; otherwise the handler chain is returned unchanged.
func Wrap(next http.Handler) http.Handler {
	rps := 0
	if s := os.Getenv("RATE_LIMIT_RPS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			rps = n
		}
	}
	if rps == 0 {
		return next
	}
	tb := &TokenBucket{capacity: rps}
	logger.L().Info("ratelimit_enabled", "rps", rps)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
