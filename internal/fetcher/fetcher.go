// Package fetcher splits a timestamp range into N sub-ranges and fetches
// them in parallel against a BlockProvider, preserving dispatch order.
package fetcher

import (
	"context"
	"errors"
	"fmt"

	"bento-indexer/internal/client"
	"bento-indexer/internal/types"
)

// ErrRangeTooLarge is returned when a sub-range would exceed
// types.MaxTimestampRange; the caller must not dispatch it.
var ErrRangeTooLarge = errors.New("range too large")

// Fetch splits rng into n sub-ranges and fetches each one in parallel via
// provider, returning them as n BlockBatches in ascending-FromTs order. It
// returns ErrRangeTooLarge before issuing any network I/O if any sub-range
// would exceed types.MaxTimestampRange. Otherwise it waits for every
// sub-fetch to finish and, if any failed, returns the error of the
// lowest-index failing worker, annotated with that index, and no batches.
// In-flight sub-fetches are not cancelled when one of them fails.
func Fetch(ctx context.Context, provider client.BlockProvider, rng types.BlockRange, n int) ([]types.BlockBatch, error) {
	if n < 1 {
		return nil, fmt.Errorf("fetch: n must be >= 1, got %d", n)
	}
	subRanges := partition(rng, n)
	for i, sr := range subRanges {
		if err := checkRangeSize(sr); err != nil {
			return nil, fmt.Errorf("worker %d/%d: %w", i, n, err)
		}
	}

	results := make([]types.BlockBatch, n)
	errs := make([]error, n)

	sem := make(chan struct{}, n)
	done := make(chan int, n)
	for i, sr := range subRanges {
		sem <- struct{}{}
		go func(i int, sr types.BlockRange) {
			defer func() { <-sem; done <- i }()
			blocks, err := provider.ListBlocksWithEvents(ctx, sr.FromTs, sr.ToTs)
			if err != nil {
				errs[i] = fmt.Errorf("worker %d/%d: Failed to fetch chunk [%d,%d): %w", i, n, sr.FromTs, sr.ToTs, err)
				return
			}
			results[i] = types.BlockBatch{Blocks: blocks, Range: sr}
		}(i, sr)
	}
	for range subRanges {
		<-done
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// partition divides rng into n sub-ranges of equal (integer-floor) size,
// except the last one whose upper bound is pinned to rng.ToTs so the
// aggregate always equals rng exactly.
func partition(rng types.BlockRange, n int) []types.BlockRange {
	chunk := (rng.ToTs - rng.FromTs) / int64(n)
	out := make([]types.BlockRange, n)
	for i := 0; i < n; i++ {
		from := rng.FromTs + int64(i)*chunk
		to := from + chunk
		if i == n-1 {
			to = rng.ToTs
		}
		out[i] = types.BlockRange{FromTs: from, ToTs: to}
	}
	return out
}

// checkRangeSize enforces the per-call range cap ahead of dispatch.
func checkRangeSize(rng types.BlockRange) error {
	if rng.ToTs-rng.FromTs > types.MaxTimestampRange {
		return ErrRangeTooLarge
	}
	return nil
}

// CheckRangeSize is the exported single-range precondition check, for
// callers outside this package that fetch a range as a single chunk.
func CheckRangeSize(rng types.BlockRange) error {
	return checkRangeSize(rng)
}
