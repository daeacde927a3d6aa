// Package store defines the Store capability — idempotent batch inserts and
// the queries the worker and read-API need — plus its pgx-backed Postgres
// implementation.
package store

import (
	"context"

	"bento-indexer/internal/types"
)

// Store is the persistence capability shared by every processor and the
// read-API. Implementations must make every insert idempotent on the
// natural key named in its doc comment.
type Store interface {
	// InsertBlocks upserts blocks, no-op on conflicting hash.
	InsertBlocks(ctx context.Context, blocks []types.BlockModel) error
	// InsertTransactions upserts transactions, no-op on conflicting tx_hash.
	InsertTransactions(ctx context.Context, txs []types.TxModel) error
	// InsertEvents upserts events, no-op on conflicting (tx_id,
	// contract_address, event_index).
	InsertEvents(ctx context.Context, events []types.EventModel) error

	// MaxBlockTimestamp returns the highest stored block timestamp, and ok=false
	// if the store has no blocks yet.
	MaxBlockTimestamp(ctx context.Context) (ts int64, ok bool, err error)
	// BlocksAtHeight returns stored blocks at the given height (used by
	// height-repair callers that want to verify what is already persisted).
	BlocksAtHeight(ctx context.Context, height int64) ([]types.BlockModel, error)
	// LatestBlock returns the highest-height stored block for a shard pair,
	// and ok=false if none exists. fromGroup/toGroup are accepted for API
	// symmetry with the node's sharded model; the default implementation
	// does not filter by shard since blocks are stored shard-agnostically.
	LatestBlock(ctx context.Context, fromGroup, toGroup int32) (types.BlockModel, bool, error)

	// ListBlocks returns a page of blocks ordered by height asc/desc.
	ListBlocks(ctx context.Context, limit, offset int, desc bool) ([]types.BlockModel, error)
	// BlockByHash returns a single block.
	BlockByHash(ctx context.Context, hash string) (types.BlockModel, bool, error)
	// BlockByHeight returns blocks at a height (multiple possible pre-finality).
	BlockByHeight(ctx context.Context, height int64) ([]types.BlockModel, error)
	// TransactionsByBlockHash returns the transactions belonging to a block.
	TransactionsByBlockHash(ctx context.Context, blockHash string, limit, offset int) ([]types.TxModel, error)
	// TransactionByHash returns a single transaction.
	TransactionByHash(ctx context.Context, hash string) (types.TxModel, bool, error)
	// EventsByTxID returns events emitted by a transaction.
	EventsByTxID(ctx context.Context, txID string, limit, offset int) ([]types.EventModel, error)
	// EventsByContract returns events emitted by a contract address.
	EventsByContract(ctx context.Context, contractAddress string, limit, offset int) ([]types.EventModel, error)

	// SetProcessorStatus records processor progress for (processor, network, kind).
	SetProcessorStatus(ctx context.Context, processorName, network, kind string, lastTimestamp int64) error
	// GetProcessorStatus reads it back; ok=false if no row exists yet.
	GetProcessorStatus(ctx context.Context, processorName, network, kind string) (int64, bool, error)

	// Migrate applies the schema at schemaPath idempotently.
	Migrate(ctx context.Context, schemaPath string) error
	// Close releases pool resources.
	Close()
}

// ProcessorStatusKindSync and ProcessorStatusKindBackfill distinguish the two
// independent progress cursors a processor may have, per SPEC_FULL's
// supplemented processor_status.kind column.
const (
	ProcessorStatusKindSync     = "sync"
	ProcessorStatusKindBackfill = "backfill"
)
