package worker

import (
	"context"
	"sync"

	"bento-indexer/internal/store"
	"bento-indexer/internal/types"
)

// fakeStore is an in-memory store.Store test double, just enough to drive
// RunBackfill/RunSync through production code instead of stubbing every
// call behind a mock.
type fakeStore struct {
	mu       sync.Mutex
	blocks   []types.BlockModel
	statuses map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{statuses: map[string]int64{}}
}

func (s *fakeStore) InsertBlocks(_ context.Context, blocks []types.BlockModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, blocks...)
	return nil
}

func (s *fakeStore) InsertTransactions(context.Context, []types.TxModel) error { return nil }
func (s *fakeStore) InsertEvents(context.Context, []types.EventModel) error    { return nil }

func (s *fakeStore) MaxBlockTimestamp(context.Context) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blocks) == 0 {
		return 0, false, nil
	}
	max := s.blocks[0].Timestamp
	for _, b := range s.blocks[1:] {
		if b.Timestamp > max {
			max = b.Timestamp
		}
	}
	return max, true, nil
}

func (s *fakeStore) BlocksAtHeight(_ context.Context, height int64) ([]types.BlockModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.BlockModel
	for _, b := range s.blocks {
		if b.Height == height {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) LatestBlock(context.Context, int32, int32) (types.BlockModel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.blocks) == 0 {
		return types.BlockModel{}, false, nil
	}
	best := s.blocks[0]
	for _, b := range s.blocks[1:] {
		if b.Height > best.Height {
			best = b
		}
	}
	return best, true, nil
}

func (s *fakeStore) ListBlocks(context.Context, int, int, bool) ([]types.BlockModel, error) {
	return nil, nil
}
func (s *fakeStore) BlockByHash(context.Context, string) (types.BlockModel, bool, error) {
	return types.BlockModel{}, false, nil
}
func (s *fakeStore) BlockByHeight(context.Context, int64) ([]types.BlockModel, error) { return nil, nil }
func (s *fakeStore) TransactionsByBlockHash(context.Context, string, int, int) ([]types.TxModel, error) {
	return nil, nil
}
func (s *fakeStore) TransactionByHash(context.Context, string) (types.TxModel, bool, error) {
	return types.TxModel{}, false, nil
}
func (s *fakeStore) EventsByTxID(context.Context, string, int, int) ([]types.EventModel, error) {
	return nil, nil
}
func (s *fakeStore) EventsByContract(context.Context, string, int, int) ([]types.EventModel, error) {
	return nil, nil
}

func (s *fakeStore) SetProcessorStatus(_ context.Context, processorName, network, kind string, lastTimestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[processorName+"|"+network+"|"+kind] = lastTimestamp
	return nil
}

func (s *fakeStore) GetProcessorStatus(_ context.Context, processorName, network, kind string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.statuses[processorName+"|"+network+"|"+kind]
	return v, ok, nil
}

func (s *fakeStore) Migrate(context.Context, string) error { return nil }
func (s *fakeStore) Close()                                {}

var _ store.Store = (*fakeStore)(nil)
