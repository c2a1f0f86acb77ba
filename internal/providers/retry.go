package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPError is a non-2xx reply from a provider endpoint.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// ParseRetryAfter reads a Retry-After header given in seconds.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// RetryConfig bounds provider retries.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// retryAfterBackOff honours a server-provided Retry-After before falling back
// to the exponential schedule.
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d != backoff.Stop && b.next > d {
		d = b.next
	}
	b.next = 0
	return d
}

// RetryDo runs fn until it succeeds, fails permanently, or retries run out.
// Only retryable HTTP errors are retried.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.InitialInterval
	exp.MaxInterval = cfg.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	b := &retryAfterBackOff{BackOff: backoff.WithMaxRetries(exp, uint64(max(cfg.MaxRetries, 0)))}

	return backoff.RetryWithData(func() (T, error) {
		if err := ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		var herr *HTTPError
		if errors.As(err, &herr) && herr.Retryable() {
			b.next = herr.RetryAfter
			return v, err
		}
		if isRetryable(err) {
			return v, err
		}
		return v, backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

// retryableError lets other providers mark their own errors as transient.
type retryableError interface {
	Retryable() bool
}

func isRetryable(err error) bool {
	var re retryableError
	return errors.As(err, &re) && re.Retryable()
}
