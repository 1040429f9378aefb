package services

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v5"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
)

// Retrier bounds retries of transient storage failures. Store outcomes,
// validation errors and context cancellation are returned immediately.
type Retrier struct {
	// MaxTries is the total number of attempts (>= 1).
	MaxTries uint
	// NewBackOff builds the delay policy for one call. Defaults to exponential.
	NewBackOff func() backoff.BackOff
}

// NewRetrier returns an exponential-backoff Retrier with maxTries attempts.
func NewRetrier(maxTries int) Retrier {
	if maxTries < 1 {
		maxTries = 1
	}
	return Retrier{MaxTries: uint(maxTries)}
}

func (r Retrier) backOff() backoff.BackOff {
	if r.NewBackOff != nil {
		return r.NewBackOff()
	}
	return backoff.NewExponentialBackOff()
}

func permanent(err error) bool {
	return domain.IsOutcome(err) ||
		errors.Is(err, ErrMissingArgument) ||
		errors.Is(err, ErrInvalidRoleName) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func retryValue[T any](ctx context.Context, r Retrier, op func() (T, error)) (T, error) {
	tries := r.MaxTries
	if tries == 0 {
		tries = 1
	}
	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && permanent(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(r.backOff()), backoff.WithMaxTries(tries))

	// the last attempt may come back still wrapped
	var p *backoff.PermanentError
	if errors.As(err, &p) {
		err = p.Unwrap()
	}
	return v, err
}

func retry(ctx context.Context, r Retrier, op func() error) error {
	_, err := retryValue(ctx, r, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}
