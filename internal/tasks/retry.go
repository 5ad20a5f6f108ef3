package tasks

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/desertthunder/gmsync/internal/shared"
)

// RetryPolicy is the exponential backoff applied to transient failures.
//
// MaxRetries and MaxElapsedTime both bound the retries; zero leaves that bound off.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// NewRetryPolicy builds a RetryPolicy from the [retry] config section.
func NewRetryPolicy(conf shared.RetryConfig) RetryPolicy {
	return RetryPolicy{
		InitialInterval: conf.InitialInterval,
		MaxInterval:     conf.MaxInterval,
		MaxElapsedTime:  conf.MaxElapsedTime,
		MaxRetries:      conf.MaxRetries,
	}
}

// BackOff returns a fresh [backoff.BackOff] bound to ctx.
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = p.MaxElapsedTime
	exp.Reset()

	var b backoff.BackOff = exp
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return backoff.WithContext(b, ctx)
}
