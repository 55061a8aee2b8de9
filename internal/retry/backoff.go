// Package retry wraps cenkalti/backoff/v4 with a (base, factor, cap,
// jitter) exponential backoff. A retry loop stops on success, on a
// non-retryable error, once Policy.MaxElapsed has passed, or when ctx is
// done; with MaxElapsed 0, as in DefaultPolicy, a retryable error is
// retried until ctx is done.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures an exponential backoff with jitter. Zero-valued fields
// fall back to the spec §4.2/§6 CID-fetch defaults (base 10ms, factor 2,
// cap 5s).
type Policy struct {
	Base       time.Duration
	Factor     float64
	Cap        time.Duration
	MaxElapsed time.Duration // 0 = no overall deadline beyond ctx
}

// DefaultPolicy returns the CID-fetch backoff parameters from spec §4.2.
func DefaultPolicy() Policy {
	return Policy{
		Base:   10 * time.Millisecond,
		Factor: 2,
		Cap:    5 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	if p.Base <= 0 {
		p.Base = 10 * time.Millisecond
	}
	if p.Factor <= 0 {
		p.Factor = 2
	}
	if p.Cap <= 0 {
		p.Cap = 5 * time.Second
	}
	return p
}

func (p Policy) backoffFactory() *backoff.ExponentialBackOff {
	p = p.withDefaults()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = p.Factor
	b.MaxInterval = p.Cap
	b.MaxElapsedTime = p.MaxElapsed
	b.RandomizationFactor = 0.2 // jitter
	return b
}

// Retryable classifies whether an error should trigger another attempt.
// Retry stops on the first non-retryable error.
type Retryable func(error) bool

// Do runs fn until it succeeds, isRetryable returns false for its error, or
// the policy's backoff is exhausted (MaxElapsedTime reached, or ctx done).
// The last error is returned unwrapped so callers can classify it
// (errors.IsTransient/IsPermanent).
func Do(ctx context.Context, p Policy, isRetryable Retryable, fn func() error) error {
	b := backoff.WithContext(p.backoffFactory(), ctx)

	var lastErr error
	op := func() error {
		err := fn()
		lastErr = err
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, b); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

// AlwaysRetryable treats every error as retryable; the backoff's
// MaxElapsedTime or context cancellation is the only stop condition.
func AlwaysRetryable(error) bool { return true }
