package fetcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bento-indexer/internal/client"
	"bento-indexer/internal/types"
)

func TestFetchRangeDivisionEven(t *testing.T) {
	rng := types.BlockRange{FromTs: 1000, ToTs: 5000}
	provider := client.NewMockProvider()
	expected := []types.BlockRange{
		{1000, 2000}, {2000, 3000}, {3000, 4000}, {4000, 5000},
	}
	for _, r := range expected {
		provider.Blocks[client.RangeKey{FromTs: r.FromTs, ToTs: r.ToTs}] = nil
	}

	batches, err := Fetch(context.Background(), provider, rng, 4)
	require.NoError(t, err)
	require.Len(t, batches, 4)
	for i, b := range batches {
		assert.Equal(t, expected[i], b.Range)
	}
	assert.Equal(t, int64(5000), batches[len(batches)-1].Range.ToTs)
}

func TestFetchRangeDivisionUneven(t *testing.T) {
	rng := types.BlockRange{FromTs: 0, ToTs: 1000}
	provider := client.NewMockProvider()

	batches, err := Fetch(context.Background(), provider, rng, 3)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, types.BlockRange{0, 333}, batches[0].Range)
	assert.Equal(t, types.BlockRange{333, 666}, batches[1].Range)
	assert.Equal(t, types.BlockRange{666, 1000}, batches[2].Range)
	assert.Equal(t, int64(1000), batches[2].Range.ToTs)
}

func TestFetchOneFetcherFails(t *testing.T) {
	rng := types.BlockRange{FromTs: 0, ToTs: 4000}
	provider := client.NewMockProvider()
	// sub-range 1 is [1000,2000)
	provider.ErrOnRange[client.RangeKey{FromTs: 1000, ToTs: 2000}] = errors.New("boom")

	_, err := Fetch(context.Background(), provider, rng, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to fetch chunk")
	assert.True(t, strings.Contains(err.Error(), "worker 1/4"))
}

func TestFetchChunkMaxRangeLimit(t *testing.T) {
	rng := types.BlockRange{FromTs: 0, ToTs: types.MaxTimestampRange + 1}
	provider := client.NewMockProvider()

	_, err := Fetch(context.Background(), provider, rng, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRangeTooLarge)
}

func TestFetchEmptyRangeYieldsEmptyBatches(t *testing.T) {
	rng := types.BlockRange{FromTs: 100, ToTs: 100}
	provider := client.NewMockProvider()

	batches, err := Fetch(context.Background(), provider, rng, 4)
	require.NoError(t, err)
	require.Len(t, batches, 4)
	for _, b := range batches {
		assert.Empty(t, b.Blocks)
	}
}
