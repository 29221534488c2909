// Package schedule applies the bounded retry and timeout policy every
// network and query-engine call runs under.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/gschex1112/songflow/internal/metrics"
	"github.com/gschex1112/songflow/pkg/types"
)

// Permanent marks err as not worth retrying; Do stops immediately and
// returns it.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op under the policy: each attempt gets its own timeout, failures
// back off exponentially, and the attempt count is bounded. Retry stays
// inside a single call site; it never spans pipeline stages.
func Do(ctx context.Context, policy types.RetryPolicy, logger *slog.Logger, name string, op func(ctx context.Context) error) error {
	attemptTimeout := time.Duration(policy.AttemptTimeoutSeconds) * time.Second

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(policy.BackoffSeconds) * time.Second
	b.Multiplier = policy.BackoffMultiplier

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		attemptCtx := ctx
		var cancel context.CancelFunc
		if attemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, attemptTimeout)
			defer cancel()
		}
		return struct{}{}, op(attemptCtx)
	}

	notify := func(err error, wait time.Duration) {
		metrics.RetriesTotal.Add(1)
		logger.Warn("retrying after failure", "call", name, "attempt", attempt, "wait", wait, "error", err)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	return err
}
