package lightning

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy runs an operation up to Attempts times, applying Timeout per
// attempt and Delay between attempts. Cancellation is checked between
// attempts, not just before the first.
type RetryPolicy struct {
	Attempts int
	Timeout  time.Duration
	Delay    func(attempt int) time.Duration
	// RetryIf gates which errors are retried; nil retries everything.
	RetryIf func(error) bool
}

// Do executes op under the policy and returns the last error when all
// attempts fail.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		lastErr = op(attemptCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(lastErr) {
			return lastErr
		}
		if attempt == p.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay(attempt)):
		}
	}
	return lastErr
}

// ExponentialBackoff returns 2^attempt seconds plus up to one second of
// jitter so concurrent reconnects do not stampede.
func ExponentialBackoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	return base + time.Duration(rand.Int63n(int64(time.Second)))
}

// FixedDelay returns a constant delay regardless of attempt.
func FixedDelay(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// ConnectPolicy gates the initial backend connection.
func ConnectPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Timeout:  30 * time.Second,
		Delay:    ExponentialBackoff,
	}
}

// WebhookPolicy gates webhook registration after connect.
func WebhookPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Timeout:  30 * time.Second,
		Delay:    ExponentialBackoff,
	}
}

// PreparePolicy gates fee quoting and invoice materialization. Only
// transient errors are retried; validation rejections surface immediately.
func PreparePolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 2,
		Timeout:  10 * time.Second,
		Delay:    FixedDelay(2 * time.Second),
		RetryIf:  IsTransient,
	}
}
