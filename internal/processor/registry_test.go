package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bento-indexer/internal/store"
	"bento-indexer/internal/types"
)

type stubProcessor struct{ name string }

func (p *stubProcessor) Name() string      { return p.name }
func (p *stubProcessor) Pool() store.Store { return nil }
func (p *stubProcessor) Process(context.Context, []types.BlockAndEvents) (types.ProcessorOutput, error) {
	return types.ProcessorOutput{}, nil
}
func (p *stubProcessor) Store(context.Context, types.ProcessorOutput) error { return nil }

func stubFactory(_ store.Store, config map[string]interface{}) (Processor, error) {
	name, _ := config["name"].(string)
	if name == "" {
		name = "stub"
	}
	return &stubProcessor{name: name}, nil
}

func TestRegistryConfigResolvesRegisteredFactory(t *testing.T) {
	reg := NewRegistry()
	reg.Register("stub", stubFactory)

	cfg, ok := reg.Config("stub", map[string]interface{}{"name": "custom-stub"})
	require.True(t, ok)
	assert.Equal(t, "stub", cfg.Name)

	p, err := cfg.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "custom-stub", p.Name())
}

func TestRegistryConfigUnknownNameNotFound(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Config("does-not-exist", nil)
	assert.False(t, ok)
}

func TestRegistryRegisterOverwritesPreviousFactory(t *testing.T) {
	reg := NewRegistry()
	reg.Register("dup", func(_ store.Store, _ map[string]interface{}) (Processor, error) {
		return &stubProcessor{name: "first"}, nil
	})
	reg.Register("dup", func(_ store.Store, _ map[string]interface{}) (Processor, error) {
		return &stubProcessor{name: "second"}, nil
	})

	cfg, ok := reg.Config("dup", nil)
	require.True(t, ok)
	p, err := cfg.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "second", p.Name())
}
