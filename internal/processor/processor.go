// Package processor defines the Processor contract, the ProcessorConfig
// tagged variant and the built-in block/event/transaction processors.
package processor

import (
	"context"

	"bento-indexer/internal/store"
	"bento-indexer/internal/types"
)

// Processor transforms a batch of blocks into a ProcessorOutput and persists
// it. Built-ins are pure transforms; advanced/custom processors may touch
// the network or the store during process as well as store.
type Processor interface {
	// Name is a stable identifier used for logging, status keys and
	// custom-config lookup.
	Name() string
	// Process is a transform from a block batch to a tagged output.
	Process(ctx context.Context, blocks []types.BlockAndEvents) (types.ProcessorOutput, error)
	// Store persists output idempotently.
	Store(ctx context.Context, output types.ProcessorOutput) error
	// Pool exposes the underlying store for observability (pool stats in
	// logs); it is the same Store instance the factory was given.
	Pool() store.Store
}

// BuiltinKind enumerates the built-in processor kinds.
type BuiltinKind string

const (
	BuiltinBlock       BuiltinKind = "block"
	BuiltinEvent       BuiltinKind = "event"
	BuiltinTransaction BuiltinKind = "transaction"
)

// Factory builds a Processor given a Store and an opaque per-processor
// config blob (may be nil for built-ins that need no configuration).
type Factory func(s store.Store, config map[string]interface{}) (Processor, error)

// Config is the tagged variant over built-ins and named custom processors.
// Exactly one of the two shapes is meaningful: either Builtin is non-empty,
// or Name/Factory are set (a registered custom processor).
type Config struct {
	// Builtin selects one of the built-in kinds; empty for custom.
	Builtin BuiltinKind
	// Name is the custom processor's registry name, used to look up its
	// factory and its config blob under [processors.<name>]. The built
	// processor's Name() is whatever its factory gives it.
	Name string
	// Factory builds the custom processor; nil for built-ins.
	Factory Factory
	// ConfigBlob is the opaque per-processor TOML section, typed decoding
	// being the processor's own responsibility.
	ConfigBlob map[string]interface{}
}

// Build realizes a Config into a live Processor bound to s.
func (c Config) Build(s store.Store) (Processor, error) {
	if c.Builtin != "" {
		switch c.Builtin {
		case BuiltinBlock:
			return NewBlockProcessor(s), nil
		case BuiltinEvent:
			return NewEventProcessor(s), nil
		case BuiltinTransaction:
			return NewTransactionProcessor(s), nil
		}
	}
	return c.Factory(s, c.ConfigBlob)
}

// Registry is the process-wide mapping of custom processor name to Factory,
// populated once at startup from CLI/config plumbing and read-only
// thereafter.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a named factory. Re-registering the same name overwrites the
// previous factory; this is only ever called during startup wiring.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Config builds a Config for a registered custom processor name, attaching
// configBlob.
func (r *Registry) Config(name string, configBlob map[string]interface{}) (Config, bool) {
	f, ok := r.factories[name]
	if !ok {
		return Config{}, false
	}
	return Config{Name: name, Factory: f, ConfigBlob: configBlob}, true
}
