package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bento-indexer/internal/processor"
	"bento-indexer/internal/store"
	"bento-indexer/internal/types"
)

// recordingProcessor records the order in which Store is invoked so tests
// can assert per-processor FIFO ordering.
type recordingProcessor struct {
	name   string
	mu     sync.Mutex
	stored []int
	failAt int // block count of the batch whose Store should fail; -1 disables
}

func (p *recordingProcessor) Name() string {
	if p.name == "" {
		return "recording"
	}
	return p.name
}
func (p *recordingProcessor) Pool() store.Store { return nil }

func (p *recordingProcessor) Process(_ context.Context, blocks []types.BlockAndEvents) (types.ProcessorOutput, error) {
	return types.ProcessorOutput{Kind: types.OutputCustom, CustomKind: "marker", Custom: len(blocks)}, nil
}

func (p *recordingProcessor) Store(_ context.Context, output types.ProcessorOutput) error {
	n, _ := output.AsCustom("marker")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored = append(p.stored, n.(int))
	if p.failAt == n.(int) {
		return errors.New("synthetic store failure")
	}
	return nil
}

func TestPipelinePreservesOrder(t *testing.T) {
	proc := &recordingProcessor{failAt: -1}
	batches := []types.BlockBatch{
		{Blocks: make([]types.BlockAndEvents, 1)},
		{Blocks: make([]types.BlockAndEvents, 2)},
		{Blocks: make([]types.BlockAndEvents, 3)},
	}
	err := New(proc).Run(context.Background(), batches)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, proc.stored)
}

func TestPipelineStoreErrorPropagates(t *testing.T) {
	proc := &recordingProcessor{failAt: 2}
	batches := []types.BlockBatch{
		{Blocks: make([]types.BlockAndEvents, 1)},
		{Blocks: make([]types.BlockAndEvents, 2)},
		{Blocks: make([]types.BlockAndEvents, 3)},
	}
	err := New(proc).Run(context.Background(), batches)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording")
}

func TestRunAllFansOutToEveryProcessorIndependently(t *testing.T) {
	a := &recordingProcessor{name: "a", failAt: -1}
	b := &recordingProcessor{name: "b", failAt: -1}
	batches := []types.BlockBatch{
		{Blocks: make([]types.BlockAndEvents, 1)},
		{Blocks: make([]types.BlockAndEvents, 2)},
	}

	err := RunAll(context.Background(), []processor.Processor{a, b}, batches)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, a.stored)
	assert.Equal(t, []int{1, 2}, b.stored)
}

func TestRunAllReturnsFirstErrorWithoutStoppingOtherProcessors(t *testing.T) {
	failing := &recordingProcessor{name: "failing", failAt: 2}
	ok := &recordingProcessor{name: "ok", failAt: -1}
	batches := []types.BlockBatch{
		{Blocks: make([]types.BlockAndEvents, 1)},
		{Blocks: make([]types.BlockAndEvents, 2)},
	}

	err := RunAll(context.Background(), []processor.Processor{failing, ok}, batches)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	assert.Equal(t, []int{1, 2}, ok.stored)
}
