// Package retry wraps flaky model and network calls with classification-driven
// exponential backoff.
//
// Classification is string-based on purpose: the upstream error shapes (HTTP
// clients, model SDKs, DNS) are heterogeneous and not under our control, so
// message content is the only backend-agnostic signal. False negatives are
// preferred over retrying genuinely fatal errors such as auth failures.
package retry

import (
	"context"
	"strings"
	"time"

	retrylib "github.com/sethvargo/go-retry"
)

// DefaultMaxAttempts is the default total number of attempts.
const DefaultMaxAttempts = 3

// DefaultBackoff is the default base delay; attempt n waits base * 2^(n-1).
const DefaultBackoff = time.Second

// Options configures a single Do call. Never persisted.
type Options struct {
	// MaxAttempts is the total call count ceiling, including the first try.
	MaxAttempts int

	// Backoff is the base delay between attempts. Successive delays double
	// deterministically; no jitter, so tests can bound timing.
	Backoff time.Duration

	// ShouldRetry classifies an error as transient. Nil means always retry.
	ShouldRetry func(error) bool
}

// DefaultOptions returns the standard retry settings.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
	}
}

// Do runs op up to opts.MaxAttempts times with exponential backoff between
// attempts. When ShouldRetry rejects an error, or attempts run out, the most
// recent error is returned as-is, never wrapped.
func Do[T any](ctx context.Context, opts Options, op func(context.Context) (T, error)) (T, error) {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	shouldRetry := opts.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(error) bool { return true }
	}

	backoff := retrylib.WithMaxRetries(
		uint64(opts.MaxAttempts-1),
		retrylib.NewExponential(opts.Backoff),
	)

	var result T
	err := retrylib.Do(ctx, backoff, func(ctx context.Context) error {
		v, opErr := op(ctx)
		if opErr != nil {
			if shouldRetry(opErr) {
				return retrylib.RetryableError(opErr)
			}
			return opErr
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// networkSignals mark transient connectivity failures.
var networkSignals = []string{
	"timeout", "network", "connection", "econnreset", "enotfound",
}

// modelSignals mark transient AI-backend conditions.
var modelSignals = []string{
	"rate limit", "quota exceeded", "service unavailable", "timeout",
	"too many requests",
}

// IsNetworkError reports whether err looks like a transient network failure.
// Nil errors are never retryable.
func IsNetworkError(err error) bool {
	return matchesAny(err, networkSignals)
}

// IsModelError reports whether err looks like a transient model-backend
// condition (rate limiting, quota, availability).
func IsModelError(err error) bool {
	return matchesAny(err, modelSignals)
}

func matchesAny(err error, signals []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range signals {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
