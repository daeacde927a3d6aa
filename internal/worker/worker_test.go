package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bento-indexer/internal/client"
	"bento-indexer/internal/processor"
	"bento-indexer/internal/store"
	"bento-indexer/internal/types"
)

func TestComputeSyncStartTailFollow(t *testing.T) {
	// Scenario 5: local=10_000, remote=12_000, backstep=1_000.
	start := computeSyncStart(10_000, 12_000, 1_000)
	assert.Equal(t, int64(9_000), start)
}

func TestComputeSyncStartFarBehindFallback(t *testing.T) {
	// Scenario 6: local=1_000, remote=1_000_000, backstep=2_000.
	start := computeSyncStart(1_000, 1_000_000, 2_000)
	assert.Equal(t, int64(998_000), start)
}

func TestComputeSyncStartClampsAtZero(t *testing.T) {
	// backstep >= remoteTs must not underflow.
	start := computeSyncStart(500, 100, 1_000)
	assert.GreaterOrEqual(t, start, int64(0))
}

func blockFixture(hash string, height, ts int64) types.BlockAndEvents {
	mainChain := true
	return types.BlockAndEvents{
		Block: types.BlockEntry{
			Hash:      hash,
			Timestamp: ts,
			Height:    height,
			MainChain: &mainChain,
		},
	}
}

// TestBackfillChunking exercises RunBackfill end to end (scenario 7): three
// equal 3_000ms chunks fetched via a single fetcher so each chunk maps to one
// exact RangeKey fixture, stored through the real block pipeline into a
// fake store.
func TestBackfillChunking(t *testing.T) {
	provider := client.NewMockProvider()
	provider.Blocks[client.RangeKey{FromTs: 0, ToTs: 3_000}] = []types.BlockAndEvents{blockFixture("a", 1, 1_000)}
	provider.Blocks[client.RangeKey{FromTs: 3_000, ToTs: 6_000}] = []types.BlockAndEvents{blockFixture("b", 2, 4_000)}
	provider.Blocks[client.RangeKey{FromTs: 6_000, ToTs: 9_000}] = []types.BlockAndEvents{blockFixture("c", 3, 8_000)}

	fs := newFakeStore()
	startTs, stopTs := int64(0), int64(9_000)
	w := New(Worker{
		Store:    fs,
		Provider: provider,
		ProcessorConfigs: []processor.Config{
			{Builtin: processor.BuiltinBlock},
		},
		BackfillOpts: &BackfillOptions{
			StartTs: &startTs,
			StopTs:  &stopTs,
			Step:    3_000,
		},
		NFetchers: 1,
		Network:   types.Network{Kind: types.Devnet},
	})

	err := w.RunBackfill(context.Background())
	require.NoError(t, err)

	require.Len(t, fs.blocks, 3)
	hashes := map[string]bool{}
	for _, b := range fs.blocks {
		hashes[b.Hash] = true
	}
	assert.True(t, hashes["a"] && hashes["b"] && hashes["c"])

	lastTs, ok, err := fs.GetProcessorStatus(context.Background(), "block", "devnet", store.ProcessorStatusKindBackfill)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(8_000), lastTs)
}

// TestSyncAtHeightFetchesAndStores exercises syncAtHeight (4.G.4) directly:
// every shard-pair resolves to the same fixture hash, and each hit is run
// through the real block pipeline into the fake store.
func TestSyncAtHeightFetchesAndStores(t *testing.T) {
	provider := client.NewMockProvider()
	provider.HashesAtHeight[1] = []string{"genesis-child"}
	provider.ByHash["genesis-child"] = blockFixture("genesis-child", 1, 1_500)

	fs := newFakeStore()
	w := New(Worker{
		Store:    fs,
		Provider: provider,
		ProcessorConfigs: []processor.Config{
			{Builtin: processor.BuiltinBlock},
		},
		NFetchers: 1,
		Network:   types.Network{Kind: types.Devnet},
	})

	err := w.syncAtHeight(context.Background(), 1)
	require.NoError(t, err)

	require.NotEmpty(t, fs.blocks)
	for _, b := range fs.blocks {
		assert.Equal(t, "genesis-child", b.Hash)
	}
}

// cancelingProvider wraps MockProvider and cancels the run after its first
// ChainInfo call, letting RunSync's loop exit on the next ctx.Err() check
// instead of spinning forever.
type cancelingProvider struct {
	*client.MockProvider
	cancel context.CancelFunc
	called bool
}

func (p *cancelingProvider) ChainInfo(ctx context.Context, fromGroup, toGroup int32) (types.ChainInfo, error) {
	info, err := p.MockProvider.ChainInfo(ctx, fromGroup, toGroup)
	if !p.called {
		p.called = true
		p.cancel()
	}
	return info, err
}

// TestRunSyncOneIterationThenContextCancellation exercises the tail-follow
// loop (4.G.1) through RunSync directly: one full iteration (remote tip
// resolution, local max timestamp read, syncRange) runs against production
// code, then the zero-interval sleep at the end of that pass observes the
// cancellation and RunSync returns ctx.Err().
func TestRunSyncOneIterationThenContextCancellation(t *testing.T) {
	mock := client.NewMockProvider()
	mock.Tip = 5
	mock.HashesAtHeight[5] = []string{"tip"}
	mock.ByHash["tip"] = blockFixture("tip", 5, 5_000)

	ctx, cancel := context.WithCancel(context.Background())
	provider := &cancelingProvider{MockProvider: mock, cancel: cancel}

	fs := newFakeStore()
	require.NoError(t, fs.InsertBlocks(context.Background(), []types.BlockModel{{Hash: "seed", Timestamp: 4_000}}))

	w := New(Worker{
		Store:    fs,
		Provider: provider,
		ProcessorConfigs: []processor.Config{
			{Builtin: processor.BuiltinBlock},
		},
		SyncOpts:  &SyncOptions{Backstep: 0, RequestInterval: 0},
		NFetchers: 1,
		Network:   types.Network{Kind: types.Devnet},
	})

	err := w.RunSync(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, provider.called)
}
