// Package client implements the BlockProvider capability: the HTTP surface
// the worker uses to talk to a node. Retries and rate limiting live here so
// the rest of the system never has to think about transient network faults.
package client

import (
	"context"

	"bento-indexer/internal/types"
)

// BlockProvider is the capability set the worker, the RangeFetcher and
// sync_at_height depend on. The default implementation is HTTPProvider;
// tests use a MockProvider.
type BlockProvider interface {
	// ListBlocksWithEvents returns every block (with its events) whose
	// timestamp falls in [fromTs, toTs). Failure is reported only after the
	// provider's own retries are exhausted; callers must not retry here.
	ListBlocksWithEvents(ctx context.Context, fromTs, toTs int64) ([]types.BlockAndEvents, error)

	// BlockAndEventsByHash fetches a single block plus its events.
	BlockAndEventsByHash(ctx context.Context, hash string) (types.BlockAndEvents, error)

	// BlockHashesAtHeight resolves the hash(es) for a given height within one
	// shard pair, main-chain candidate first.
	BlockHashesAtHeight(ctx context.Context, height int64, fromGroup, toGroup int32) ([]string, error)

	// ChainInfo reports the current tip height known to the node for a shard
	// pair.
	ChainInfo(ctx context.Context, fromGroup, toGroup int32) (types.ChainInfo, error)
}
