// Package retry runs an operation under a bounded, jittered backoff loop.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy suits short venue and storage hiccups: three attempts within
// a few seconds.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// IsTransientFunc reports whether an error is worth another attempt.
type IsTransientFunc func(error) bool

// Do calls fn until it succeeds, isTransient rejects the error, the policy
// runs out of attempts, or ctx is cancelled. The last error is returned.
func Do(ctx context.Context, policy Policy, isTransient IsTransientFunc, fn func() error) error {
	backoff := policy.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt >= policy.MaxAttempts {
			return err
		}

		// Up to half a step of jitter keeps concurrent callers from
		// retrying in lockstep.
		delay := backoff + time.Duration(rand.Int63n(int64(backoff/2)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if backoff *= 2; backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
}
