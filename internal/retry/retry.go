// Package retry wraps cenkalti/backoff with the constant-delay policy used
// for the interactive two-factor approval step: a fixed sleep between
// attempts, a bounded attempt count, no exponential growth.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Constant runs op up to maxRetries+1 times, sleeping delay between attempts.
// Returning a Permanent error from op stops retrying immediately. The sleep
// honors ctx cancellation.
func Constant(ctx context.Context, delay time.Duration, maxRetries uint64, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), maxRetries), ctx)
	return backoff.Retry(op, policy)
}

// Permanent marks err as non-retryable. Call inside op.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
