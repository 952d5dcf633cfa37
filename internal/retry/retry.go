// Package retry bounds transient transport failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/rezonia/einvoice-gateway/internal/model"
)

// Policy bounds a retried call. MaxRetries is the total number of attempts.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

// DefaultPolicy returns 3 attempts starting at 1s, doubling, capped at 10s
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Factor:       2,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}
	if p.Factor < 1 {
		p.Factor = 1
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// backOff yields min(initial * factor^(n-1), max) for the n-th wait
func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          p.Factor,
		MaxInterval:         p.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// transientIndicators mark an error message as a transient network failure
var transientIndicators = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"no such host",
	"econnreset",
	"econnrefused",
	"etimedout",
	"enotfound",
	"eai_again",
}

// IsRetryable reports whether err is a transient network failure. Business,
// parse, mapping and credential errors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *model.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Kind == model.TransportTimeout || transportErr.Kind == model.TransportConnection
	}

	var (
		businessErr   *model.BusinessError
		parseErr      *model.ParseError
		mappingErr    *model.MappingError
		validationErr *model.ValidationError
		credErr       *model.CredentialsUnavailableError
	)
	switch {
	case errors.As(err, &businessErr),
		errors.As(err, &parseErr),
		errors.As(err, &mappingErr),
		errors.As(err, &validationErr),
		errors.As(err, &credErr):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range transientIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// Do runs fn until it succeeds, fails with a non-retryable error, the policy
// is exhausted or ctx is done. Non-retryable errors are returned as is after
// the first attempt; exhaustion returns a RetryExhaustedError.
func Do(ctx context.Context, policy Policy, logger *zap.Logger, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy = policy.normalized()

	attempts := 0
	operation := func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying after transient failure",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", policy.MaxRetries),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy.backOff(), uint64(policy.MaxRetries-1)), ctx)
	err := backoff.RetryNotify(operation, b, notify)
	if err == nil {
		return nil
	}
	if !IsRetryable(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return model.NewRetryExhaustedError(attempts, err)
}
