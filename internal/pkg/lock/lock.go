// Package lock provides short lived, best-effort mutual exclusion keyed by an
// arbitrary string.
//
// Locks expire on their own after the requested TTL so a crashed holder never
// blocks other callers for long. Acquire retries with a constant backoff for a
// bounded number of attempts and then gives up with ErrNotAcquired.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	// ErrNotAcquired is returned when the lock is still held after all attempts.
	ErrNotAcquired = errors.New("lock: not acquired")
)

// Release frees a lock. Releasing a lock that already expired is not an error.
type Release func(ctx context.Context) error

// Locker acquires keyed locks.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// Options controls the acquire retry policy.
type Options struct {
	Attempts uint64
	Wait     time.Duration
}

const (
	defaultAttempts = 5
	defaultWait     = 20 * time.Millisecond
)

func (o Options) backoff() retry.Backoff {
	attempts := o.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	wait := o.Wait
	if wait <= 0 {
		wait = defaultWait
	}

	// WithMaxRetries counts retries, not attempts.
	return retry.WithMaxRetries(attempts-1, retry.NewConstant(wait))
}

// acquireWithRetry runs try until it reports success, a hard error, or the
// retry budget is exhausted.
func acquireWithRetry(ctx context.Context, opts Options, try func(ctx context.Context) (bool, error)) error {
	return retry.Do(ctx, opts.backoff(), func(ctx context.Context) error {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(ErrNotAcquired)
		}
		return nil
	})
}
