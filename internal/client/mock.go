package client

import (
	"context"
	"fmt"

	"bento-indexer/internal/types"
)

// MockProvider is a BlockProvider test double driven by in-memory fixtures
// and optional per-call error injection, the way the test suite replaces the
// real node with a canned one.
type MockProvider struct {
	// Blocks maps a [fromTs,toTs) window (matched exactly) to the blocks it
	// should return. Callers construct the window with RangeKey.
	Blocks map[RangeKey][]types.BlockAndEvents
	// ByHash maps a block hash to its BlockAndEvents.
	ByHash map[string]types.BlockAndEvents
	// HashesAtHeight maps height to the resolved hash list.
	HashesAtHeight map[int64][]string
	// Tip is returned by ChainInfo.
	Tip int64
	// ErrOnRange, when set, is returned instead of the fixture for the
	// matching window (used to simulate one-fetcher-fails scenarios).
	ErrOnRange map[RangeKey]error
}

// RangeKey identifies a fixture window.
type RangeKey struct {
	FromTs, ToTs int64
}

// NewMockProvider returns an empty, ready-to-populate mock.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Blocks:         map[RangeKey][]types.BlockAndEvents{},
		ByHash:         map[string]types.BlockAndEvents{},
		HashesAtHeight: map[int64][]string{},
		ErrOnRange:     map[RangeKey]error{},
	}
}

func (m *MockProvider) ListBlocksWithEvents(_ context.Context, fromTs, toTs int64) ([]types.BlockAndEvents, error) {
	key := RangeKey{fromTs, toTs}
	if err, ok := m.ErrOnRange[key]; ok {
		return nil, err
	}
	return m.Blocks[key], nil
}

func (m *MockProvider) BlockAndEventsByHash(_ context.Context, hash string) (types.BlockAndEvents, error) {
	be, ok := m.ByHash[hash]
	if !ok {
		return types.BlockAndEvents{}, fmt.Errorf("mock: no fixture for hash %s", hash)
	}
	return be, nil
}

func (m *MockProvider) BlockHashesAtHeight(_ context.Context, height int64, _, _ int32) ([]string, error) {
	return m.HashesAtHeight[height], nil
}

func (m *MockProvider) ChainInfo(_ context.Context, _, _ int32) (types.ChainInfo, error) {
	return types.ChainInfo{CurrentHeight: m.Tip}, nil
}
