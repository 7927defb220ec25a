// Package llm talks to the text-generation provider over its REST API.
// Two providers are supported: Gemini (native generateContent endpoint,
// also used for vision) and any OpenAI-compatible chat-completions API
// (Perplexity in production).
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RateLimitError signals transient capacity exhaustion (HTTP 429).
// RetryAfter carries the provider-suggested wait, zero if none was given.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider rate limited, retry after %s", e.RetryAfter)
	}
	return "provider rate limited"
}

// RetryPolicy retries fn while it fails with a RateLimitError. MaxAttempts 0
// means retry forever; any other error, and success, pass straight through.
type RetryPolicy struct {
	MaxAttempts int
	Wait        time.Duration // fallback wait when the provider suggests none
}

func (p RetryPolicy) Do(ctx context.Context, fn func() (string, error)) (string, error) {
	attempts := 0
	for {
		out, err := fn()
		var rl *RateLimitError
		if err == nil || !errors.As(err, &rl) {
			return out, err
		}
		attempts++
		if p.MaxAttempts > 0 && attempts >= p.MaxAttempts {
			return "", fmt.Errorf("rate limited after %d attempts: %w", attempts, err)
		}
		wait := rl.RetryAfter
		if wait <= 0 {
			wait = p.Wait
		}
		if wait <= 0 {
			wait = 30 * time.Second
		}
		slog.Warn("provider rate limited, backing off", "wait", wait, "attempt", attempts)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
