package middleware

import (
	"net/http"
	"sync"
	"time"

	"rezerv/pkg/logger"
)

// OwnerExtractor picks the rate-limiting key from a request. The default
// keys on the owner group header, so one noisy tenant cannot starve the
// rest.
type OwnerExtractor func(r *http.Request) string

func DefaultOwnerExtractor(r *http.Request) string {
	return r.Header.Get("X-Owner-Group")
}

type OwnerRateLimiter struct {
	mu        sync.RWMutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor OwnerExtractor
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewOwnerRateLimiter(limit int, window time.Duration, extractor OwnerExtractor, log *logger.Logger) *OwnerRateLimiter {
	if extractor == nil {
		extractor = DefaultOwnerExtractor
	}
	limiter := &OwnerRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *OwnerRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for owner, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, owner)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *OwnerRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *OwnerRateLimiter) Allow(owner string) bool {
	if owner == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := make([]time.Time, 0)
	for _, ts := range rl.requests[owner] {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[owner] = valid
		return false
	}

	rl.requests[owner] = append(valid, now)
	return true
}

func OwnerRateLimit(limiter *OwnerRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := limiter.extractor(r)

			if owner == "" || limiter.Allow(owner) {
				next.ServeHTTP(w, r)
				return
			}

			limiter.log.Warn("Rate limit exceeded",
				"request_id", requestIDFrom(r),
				"owner", owner,
				"path", r.URL.Path,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
		})
	}
}
