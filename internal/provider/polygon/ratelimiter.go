package polygon

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests per API key (free tier: 5 req/min, one every 12s).
// It only delays calls; it never retries them.
type RateLimiter struct {
	mu     sync.Mutex
	perKey map[string]*rate.Limiter
	limit  rate.Limit
}

// NewRateLimiter allows perMinute requests per key. perMinute <= 0 disables pacing.
func NewRateLimiter(perMinute int) *RateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &RateLimiter{
		perKey: make(map[string]*rate.Limiter),
		limit:  limit,
	}
}

// WaitForKey blocks until a request with apiKey may be sent or ctx is done.
func (r *RateLimiter) WaitForKey(ctx context.Context, apiKey string) error {
	if r == nil || r.limit == rate.Inf {
		return nil
	}
	r.mu.Lock()
	l, ok := r.perKey[keyID(apiKey)]
	if !ok {
		l = rate.NewLimiter(r.limit, 1)
		r.perKey[keyID(apiKey)] = l
	}
	r.mu.Unlock()
	return l.Wait(ctx)
}

// keyID shortens an API key to an identifier safe for logs and map keys.
func keyID(apiKey string) string {
	if len(apiKey) <= 16 {
		return apiKey
	}
	return apiKey[:8] + apiKey[len(apiKey)-8:]
}

// keyPrefix returns the first 8 characters of apiKey for log lines.
func keyPrefix(apiKey string) string {
	if len(apiKey) > 8 {
		return apiKey[:8] + "..."
	}
	return apiKey
}
