// Package pipeline runs one processor over a stream of batches through two
// bounded FIFO channels: process_ch feeds the transform stage, store_ch
// feeds the storage stage.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"bento-indexer/internal/processor"
	"bento-indexer/internal/types"
)

// Capacity bounds each channel's buffer to at most this many batches, per the
// pipeline's memory budget.
const Capacity = 100

// Pipeline pairs a processor with its two stage tasks.
type Pipeline struct {
	proc processor.Processor
}

// New builds a Pipeline for proc.
func New(proc processor.Processor) *Pipeline {
	return &Pipeline{proc: proc}
}

// Run feeds batches through the pipeline in order and waits for both stages
// to drain. An error in either stage aborts both tasks of this pipeline,
// discards any remaining buffered batches, and is returned annotated with
// the processor's name.
func (p *Pipeline) Run(ctx context.Context, batches []types.BlockBatch) error {
	processCh := make(chan types.BlockBatch, Capacity)
	storeCh := make(chan types.ProcessorOutput, Capacity)

	// stageCtx is cancelled when either stage fails, so the other stage and
	// the feeder stop promptly and already-buffered batches or outputs are
	// discarded instead of draining through after the pipeline has failed.
	stageCtx, abortStage := context.WithCancel(ctx)
	defer abortStage()

	var processErr, storeErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(storeCh)
		for batch := range processCh {
			if stageCtx.Err() != nil {
				return
			}
			out, err := p.proc.Process(ctx, batch.Blocks)
			if err != nil {
				processErr = fmt.Errorf("processor %q: process: %w", p.proc.Name(), err)
				abortStage()
				return
			}
			select {
			case storeCh <- out:
			case <-stageCtx.Done():
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		for {
			select {
			case <-stageCtx.Done():
				return
			default:
			}
			select {
			case out, ok := <-storeCh:
				if !ok {
					return
				}
				if err := p.proc.Store(ctx, out); err != nil {
					storeErr = fmt.Errorf("processor %q: store: %w", p.proc.Name(), err)
					abortStage()
					return
				}
			case <-stageCtx.Done():
				return
			}
		}
	}()

feed:
	for _, batch := range batches {
		select {
		case processCh <- batch:
		case <-stageCtx.Done():
			break feed
		}
	}
	close(processCh)
	wg.Wait()

	if processErr != nil {
		return processErr
	}
	if storeErr != nil {
		return storeErr
	}
	return ctx.Err()
}

// RunAll spawns one Pipeline per processor config, each over an independent
// clone of batches, running them concurrently. It returns once every
// pipeline has completed, reporting the first non-nil error encountered (a
// failing pipeline does not stop the others).
func RunAll(ctx context.Context, procs []processor.Processor, batches []types.BlockBatch) error {
	errs := make([]error, len(procs))
	var wg sync.WaitGroup
	wg.Add(len(procs))
	for i, proc := range procs {
		cloned := make([]types.BlockBatch, len(batches))
		for j, b := range batches {
			cloned[j] = b.Clone()
		}
		go func(i int, proc processor.Processor, batches []types.BlockBatch) {
			defer wg.Done()
			errs[i] = New(proc).Run(ctx, batches)
		}(i, proc, cloned)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
