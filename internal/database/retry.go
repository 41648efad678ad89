package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// retry runs op with exponential backoff until it succeeds, maxWait elapses
// or ctx ends.
func retry(ctx context.Context, what string, maxWait time.Duration, logger *zap.SugaredLogger, op func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = maxWait

	return backoff.RetryNotify(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return op(attemptCtx)
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.Warnf("%s not ready, retrying in %s: %v", what, next, err)
	})
}
