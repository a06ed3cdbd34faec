package provider

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/adgate/adgate/internal/config"
)

// Policy describes the transient-failure retry behavior of the invoker. The
// backoff math lives here so it stays testable away from network code.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Jitter returns a value in [0,1). Defaults to math/rand.
	Jitter func() float64
}

// PolicyFromConfig builds a Policy with the default jitter source.
func PolicyFromConfig(r config.Retry) Policy {
	return Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		Jitter:      rand.Float64,
	}
}

// Delay computes the backoff before retry number attempt (0-based):
// BaseDelay × 2^attempt × (0.5 + jitter/2), so always within
// (BaseDelay × 2^(attempt-1), BaseDelay × 2^attempt].
func (p Policy) Delay(attempt int) time.Duration {
	jitter := rand.Float64
	if p.Jitter != nil {
		jitter = p.Jitter
	}
	backoff := float64(p.BaseDelay) * float64(uint64(1)<<uint(attempt))
	return time.Duration(backoff * (0.5 + jitter()/2))
}

// ParseRetryAfter extracts a provider-suggested delay from a Retry-After
// header, either delta-seconds or an HTTP date. Returns 0 when absent.
func ParseRetryAfter(h http.Header) time.Duration {
	retryAfter := h.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
