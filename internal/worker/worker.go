// Package worker implements the orchestration heart of the indexer: the
// tail-follow sync loop, bounded-range backfill, single-height repair, and
// the glue (sync_range / run_pipeline) shared by both modes.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bento-indexer/internal/client"
	"bento-indexer/internal/fetcher"
	"bento-indexer/internal/pipeline"
	"bento-indexer/internal/processor"
	"bento-indexer/internal/store"
	"bento-indexer/internal/types"
)

// SyncOptions drives the tail-follow loop (section 4.G.1).
type SyncOptions struct {
	// Step is accepted but reserved: RunSync does not read it (kept for
	// parity with backfill's option shape; see open questions).
	Step            int64
	Backstep        int64
	RequestInterval time.Duration
}

// BackfillOptions drives bounded-range backfill (section 4.G.2). StartTs and
// StopTs are resolved automatically when nil.
type BackfillOptions struct {
	StartTs         *int64
	StopTs          *int64
	Step            int64
	Backstep        int64
	RequestInterval time.Duration
}

// Worker owns the DB pool and node client and orchestrates the sync loop,
// the backfill loop, and height repair, running the same pipeline shape
// underneath all three.
type Worker struct {
	Store             store.Store
	Provider          client.BlockProvider
	ProcessorConfigs  []processor.Config
	SyncOpts          *SyncOptions
	BackfillOpts      *BackfillOptions
	NFetchers         int
	Network           types.Network
	SchemaPath        string
	Log               *zap.Logger
}

// New builds a Worker. SchemaPath defaults to "schema.sql" when empty.
func New(w Worker) *Worker {
	if w.SchemaPath == "" {
		w.SchemaPath = "schema.sql"
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}
	if w.NFetchers < 1 {
		w.NFetchers = 1
	}
	return &w
}

// Run executes schema migrations, then dispatches to backfill or sync based
// on which options are present. It is a fatal error if both are absent.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Store.Migrate(ctx, w.SchemaPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	switch {
	case w.BackfillOpts != nil:
		return w.RunBackfill(ctx)
	case w.SyncOpts != nil:
		return w.RunSync(ctx)
	default:
		return fmt.Errorf("worker misconfigured: neither sync nor backfill options were provided")
	}
}

// RunSync implements the tail-follow loop (4.G.1).
func (w *Worker) RunSync(ctx context.Context) error {
	opts := w.SyncOpts
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		remoteTs, err := w.remoteTipTimestamp(ctx)
		if err != nil {
			w.Log.Error("sync: failed to resolve remote tip timestamp", zap.Error(err))
			if !w.sleep(ctx, opts.RequestInterval) {
				return ctx.Err()
			}
			continue
		}

		localTs, ok, err := w.Store.MaxBlockTimestamp(ctx)
		if err != nil {
			w.Log.Error("sync: failed to read local max timestamp", zap.Error(err))
			if !w.sleep(ctx, opts.RequestInterval) {
				return ctx.Err()
			}
			continue
		}
		if !ok {
			localTs = time.Now().UnixMilli()
		}

		startTs := computeSyncStart(localTs, remoteTs, opts.Backstep)

		if err := w.syncRange(ctx, startTs, remoteTs, store.ProcessorStatusKindSync); err != nil {
			w.Log.Error("sync: run_pipeline failed, will retry next tick", zap.Error(err))
		}

		if !w.sleep(ctx, opts.RequestInterval) {
			return ctx.Err()
		}
	}
}

// computeSyncStart implements the start_ts formula from 4.G.1, clamping to 0
// so backstep >= remoteTs can never underflow.
func computeSyncStart(localTs, remoteTs, backstep int64) int64 {
	var startTs int64
	if remoteTs-(localTs-backstep) > backstep {
		startTs = remoteTs - backstep
	} else {
		startTs = localTs - backstep
	}
	if startTs < 0 {
		startTs = 0
	}
	return startTs
}

// RunBackfill implements bounded-range backfill (4.G.2).
func (w *Worker) RunBackfill(ctx context.Context) error {
	opts := w.BackfillOpts

	stopTs, err := w.resolveStopTs(ctx, opts.StopTs)
	if err != nil {
		return fmt.Errorf("resolve backfill stop_ts: %w", err)
	}
	startTs, err := w.resolveStartTs(ctx, opts.StartTs)
	if err != nil {
		return fmt.Errorf("resolve backfill start_ts: %w", err)
	}

	total := stopTs - startTs
	current := startTs
	for current < stopTs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		chunkEnd := current + opts.Step
		if chunkEnd > stopTs {
			chunkEnd = stopTs
		}

		if err := w.syncRange(ctx, current, chunkEnd, store.ProcessorStatusKindBackfill); err != nil {
			w.Log.Error("backfill: run_pipeline failed, moving on to the next chunk", zap.Error(err))
		}

		current = chunkEnd
		if total > 0 {
			pct := float64(current-startTs) / float64(total) * 100
			w.Log.Info("backfill progress", zap.Float64("percent", pct), zap.Int64("current", current), zap.Int64("stop_ts", stopTs))
		}

		if !w.sleep(ctx, opts.RequestInterval) {
			return ctx.Err()
		}
	}
	return nil
}

func (w *Worker) resolveStopTs(ctx context.Context, provided *int64) (int64, error) {
	if provided != nil {
		return *provided, nil
	}
	return w.remoteTipTimestamp(ctx)
}

func (w *Worker) resolveStartTs(ctx context.Context, provided *int64) (int64, error) {
	if provided != nil {
		return *provided, nil
	}
	if err := w.syncAtHeight(ctx, 0); err != nil {
		return 0, fmt.Errorf("height-sync genesis: %w", err)
	}
	if err := w.syncAtHeight(ctx, 1); err != nil {
		return 0, fmt.Errorf("height-sync height 1: %w", err)
	}
	blocks, err := w.Store.BlocksAtHeight(ctx, 1)
	if err != nil {
		return 0, fmt.Errorf("query blocks at height 1: %w", err)
	}
	if len(blocks) == 0 {
		return 0, fmt.Errorf("no blocks found at height 1 after height-sync")
	}
	min := blocks[0].Timestamp
	for _, b := range blocks[1:] {
		if b.Timestamp < min {
			min = b.Timestamp
		}
	}
	return min, nil
}

// remoteTipTimestamp performs the three-step "tip timestamp" dance: the node
// only exposes tip height, not tip timestamp directly.
func (w *Worker) remoteTipTimestamp(ctx context.Context) (int64, error) {
	info, err := w.Provider.ChainInfo(ctx, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("chain_info: %w", err)
	}
	hashes, err := w.Provider.BlockHashesAtHeight(ctx, info.CurrentHeight, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("block_hashes_at_height(%d): %w", info.CurrentHeight, err)
	}
	if len(hashes) == 0 {
		return 0, fmt.Errorf("no hashes at tip height %d", info.CurrentHeight)
	}
	be, err := w.Provider.BlockAndEventsByHash(ctx, hashes[0])
	if err != nil {
		return 0, fmt.Errorf("block_and_events_by_hash(%s): %w", hashes[0], err)
	}
	return be.Block.Timestamp, nil
}

// syncRange is section 4.G.3. Fetch errors are swallowed (logged, not
// propagated) so the tail-follow loop stays alive; pipeline errors are
// returned to the caller, which logs but does not abort the loop either.
func (w *Worker) syncRange(ctx context.Context, startTs, stopTs int64, statusKind string) error {
	rng := types.BlockRange{FromTs: startTs, ToTs: stopTs}
	batches, err := fetcher.Fetch(ctx, w.Provider, rng, w.NFetchers)
	if err != nil {
		w.Log.Warn("sync_range: fetch failed, skipping this window", zap.Int64("from_ts", startTs), zap.Int64("to_ts", stopTs), zap.Error(err))
		return nil
	}

	total := 0
	for _, b := range batches {
		total += len(b.Blocks)
	}
	if total == 0 {
		w.Log.Debug("sync_range: no blocks in window", zap.Int64("from_ts", startTs), zap.Int64("to_ts", stopTs))
		return nil
	}

	if err := w.runPipeline(ctx, batches, statusKind); err != nil {
		return err
	}
	return nil
}

// syncAtHeight is section 4.G.4: single-height fetch for genesis/gap repair.
func (w *Worker) syncAtHeight(ctx context.Context, height int64) error {
	var collected []types.BlockAndEvents
	for fromGroup := int32(0); fromGroup < types.DefaultGroupNum; fromGroup++ {
		for toGroup := int32(0); toGroup < types.DefaultGroupNum; toGroup++ {
			hashes, err := w.Provider.BlockHashesAtHeight(ctx, height, fromGroup, toGroup)
			if err != nil {
				return fmt.Errorf("block_hashes_at_height(height=%d, %d->%d): %w", height, fromGroup, toGroup, err)
			}
			if len(hashes) == 0 {
				continue
			}
			be, err := w.Provider.BlockAndEventsByHash(ctx, hashes[0])
			if err != nil {
				return fmt.Errorf("block_and_events_by_hash(%s): %w", hashes[0], err)
			}
			collected = append(collected, be)
		}
	}

	if len(collected) == 0 {
		w.Log.Info("sync_at_height: no hashes at height, nothing to do", zap.Int64("height", height))
		return nil
	}

	batch := types.BlockBatch{Blocks: collected, Range: types.BlockRange{FromTs: 0, ToTs: 0}}
	return w.runPipeline(ctx, []types.BlockBatch{batch}, store.ProcessorStatusKindBackfill)
}

// runPipeline is section 4.G.5: build each registered processor, run one
// Pipeline per processor concurrently over an independent clone of batches,
// and return the first non-nil error.
func (w *Worker) runPipeline(ctx context.Context, batches []types.BlockBatch, statusKind string) error {
	procs := make([]processor.Processor, 0, len(w.ProcessorConfigs))
	for _, cfg := range w.ProcessorConfigs {
		p, err := cfg.Build(w.Store)
		if err != nil {
			return fmt.Errorf("build processor: %w", err)
		}
		procs = append(procs, p)
	}

	if err := pipeline.RunAll(ctx, procs, batches); err != nil {
		return err
	}

	maxTs := int64(0)
	for _, b := range batches {
		for _, be := range b.Blocks {
			if be.Block.Timestamp > maxTs {
				maxTs = be.Block.Timestamp
			}
		}
	}
	if maxTs > 0 {
		for _, p := range procs {
			if err := w.Store.SetProcessorStatus(ctx, p.Name(), w.Network.Identifier(), statusKind, maxTs); err != nil {
				w.Log.Warn("failed to record processor status", zap.String("processor", p.Name()), zap.Error(err))
			}
		}
	}
	return nil
}

// sleep waits for d or ctx cancellation, returning false if ctx was
// cancelled first.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
