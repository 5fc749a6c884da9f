package llm

import (
	"context"
	"time"
)

const (
	retryDelay         = time.Second
	maxRetryAfterDelay = 5 * time.Second
)

type retrying struct {
	Provider
	maxRetries int
	delay      time.Duration
}

// WithRetry wraps p so that transient failures (rate limits, 5xx responses,
// transport errors) are retried up to maxRetries times. A rate limit whose
// Retry-After exceeds a few seconds is returned immediately.
func WithRetry(p Provider, maxRetries int) Provider {
	if maxRetries <= 0 {
		return p
	}
	return &retrying{Provider: p, maxRetries: maxRetries, delay: retryDelay}
}

func (r *retrying) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		text, err := r.Provider.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !retryable(err) || attempt == r.maxRetries {
			return "", err
		}

		wait := r.delay
		if after, ok := IsRateLimit(err); ok && after > 0 {
			if after > maxRetryAfterDelay {
				return "", err
			}
			wait = after
		}

		select {
		case <-ctx.Done():
			return "", lastErr
		case <-time.After(wait):
		}
	}
	return "", lastErr
}
