package llm

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HeaderRetryAfter is the retry-after header (seconds or HTTP date).
const HeaderRetryAfter = "Retry-After"

// RateLimiter paces calls to one provider. It combines a proactive token
// bucket with a hold window set by a 429's Retry-After. It never retries:
// a call that cannot start before its deadline fails immediately.
type RateLimiter struct {
	mu        sync.Mutex
	bucket    *rate.Limiter
	holdUntil time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMinute calls.
// Zero or less disables proactive pacing.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60)
	}
	return &RateLimiter{bucket: rate.NewLimiter(limit, 1)}
}

// Wait blocks until a call may start.
// It returns ErrHeld when the hold window outlasts the context deadline.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	hold := time.Until(r.holdUntil)
	r.mu.Unlock()

	if hold > 0 {
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < hold {
			return ErrHeld
		}
		timer := time.NewTimer(hold)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.bucket.Wait(ctx)
}

// Observe records a response. A 429 with Retry-After opens a hold window.
func (r *RateLimiter) Observe(resp *http.Response) {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return
	}
	d := parseRetryAfter(resp.Header.Get(HeaderRetryAfter), time.Now())
	if d <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if until := time.Now().Add(d); until.After(r.holdUntil) {
		r.holdUntil = until
	}
}

// HeldUntil returns the end of the current hold window, if any.
func (r *RateLimiter) HeldUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.holdUntil
}

func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return t.Sub(now)
	}
	return 0
}
