package processor

import (
	"context"

	"github.com/google/uuid"

	"bento-indexer/internal/store"
	"bento-indexer/internal/types"
)

// BlockProcessor extracts block headers, deriving tx_number from the
// embedded transaction list, and persists them.
type BlockProcessor struct {
	s store.Store
}

// NewBlockProcessor builds the block built-in.
func NewBlockProcessor(s store.Store) *BlockProcessor { return &BlockProcessor{s: s} }

func (p *BlockProcessor) Name() string     { return "block" }
func (p *BlockProcessor) Pool() store.Store { return p.s }

func (p *BlockProcessor) Process(_ context.Context, blocks []types.BlockAndEvents) (types.ProcessorOutput, error) {
	return types.ProcessorOutput{Kind: types.OutputBlock, Blocks: types.ConvertBlocks(blocks)}, nil
}

func (p *BlockProcessor) Store(ctx context.Context, output types.ProcessorOutput) error {
	return p.s.InsertBlocks(ctx, output.Blocks)
}

// EventProcessor explodes events from every block, assigning each a fresh
// UUID, and persists them.
type EventProcessor struct {
	s store.Store
}

// NewEventProcessor builds the event built-in.
func NewEventProcessor(s store.Store) *EventProcessor { return &EventProcessor{s: s} }

func (p *EventProcessor) Name() string     { return "event" }
func (p *EventProcessor) Pool() store.Store { return p.s }

func (p *EventProcessor) Process(_ context.Context, blocks []types.BlockAndEvents) (types.ProcessorOutput, error) {
	events := types.ConvertEvents(blocks, func() string { return uuid.NewString() })
	return types.ProcessorOutput{Kind: types.OutputEvent, Events: events}, nil
}

func (p *EventProcessor) Store(ctx context.Context, output types.ProcessorOutput) error {
	return p.s.InsertEvents(ctx, output.Events)
}

// TransactionProcessor extracts transactions, deduplicating by tx_id within
// a single block before insertion, and associates each with its block hash.
type TransactionProcessor struct {
	s store.Store
}

// NewTransactionProcessor builds the transaction built-in.
func NewTransactionProcessor(s store.Store) *TransactionProcessor {
	return &TransactionProcessor{s: s}
}

func (p *TransactionProcessor) Name() string     { return "transaction" }
func (p *TransactionProcessor) Pool() store.Store { return p.s }

func (p *TransactionProcessor) Process(_ context.Context, blocks []types.BlockAndEvents) (types.ProcessorOutput, error) {
	return types.ProcessorOutput{Kind: types.OutputTx, Txs: types.ConvertTransactions(blocks)}, nil
}

func (p *TransactionProcessor) Store(ctx context.Context, output types.ProcessorOutput) error {
	return p.s.InsertTransactions(ctx, output.Txs)
}
