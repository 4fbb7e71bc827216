package warehouse

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"collections-etl-go/internal/types"
)

// chunk splits ids into batches of at most size elements, preserving order.
func chunk[T any](ids []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var batches [][]T
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// fetchBatched runs fetch over id batches, at most maxWorkers at a time, and
// concatenates the results in batch order. Arrival order never leaks out.
func fetchBatched[ID any, T any](ctx context.Context, batchSize, maxWorkers int, ids []ID, fetch func(context.Context, []ID) ([]T, error)) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	batches := chunk(ids, batchSize)
	results := make([][]T, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			out, err := fetch(gctx, batch)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []T
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}

// withRetry retries transient failures with exponential backoff. Context
// cancellation and deadline expiry are permanent: the per-call timeout decides
// how long a gateway call may take, not the retry policy.
func (s *PostgresSource) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	return retryWithBackoff(ctx, fn, func(err error) {
		s.log.WithField("op", op).WithField("error", err.Error()).Warn("query failed, retrying")
	})
}

func retryWithBackoff(ctx context.Context, fn func(context.Context) error, onRetry func(error)) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		var mismatch *types.SchemaMismatchError
		if errors.As(err, &mismatch) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), func(err error, _ time.Duration) {
		onRetry(err)
	})
}
