// Package retry wraps provider calls in an opt-in exponential backoff policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperjump/ragdoc/internal/apperr"
	"github.com/hyperjump/ragdoc/internal/config"
)

// Policy configures retries. MaxAttempts <= 1 disables them.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// FromConfig converts the provider retry config.
func FromConfig(rc config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:     rc.MaxAttempts,
		InitialInterval: rc.InitialInterval,
		MaxInterval:     rc.MaxInterval,
	}
}

// Enabled reports whether the policy retries at all.
func (p Policy) Enabled() bool { return p.MaxAttempts > 1 }

// Do runs op until it succeeds, the attempts are used up, or ctx is done.
// Invalid-parameter errors are returned immediately. notify may be nil.
func Do(ctx context.Context, p Policy, op func() error, notify func(err error, wait time.Duration)) error {
	if !p.Enabled() {
		return op()
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && apperr.IsInvalidParameter(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, notify)
}
