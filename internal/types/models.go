package types

// BlockModel is the row shape persisted by the block processor.
type BlockModel struct {
	Hash         string
	Timestamp    int64
	ChainFrom    int64
	ChainTo      int64
	Height       int64
	TxNumber     int32
	Deps         []string
	Nonce        string
	Version      int8
	DepStateHash string
	TxsHash      string
	Target       string
	MainChain    bool
}

// TxModel is the row shape persisted by the transaction processor.
type TxModel struct {
	TxHash    string
	BlockHash string
	Timestamp int64
	GasAmount int32
	GasPrice  string
	Inputs    int32
	Outputs   int32
}

// EventModel is the row shape persisted by the event processor. ID is a
// fresh synthetic UUID assigned at conversion time.
type EventModel struct {
	ID              string
	TxID            string
	BlockHash       string
	ContractAddress string
	EventIndex      int32
	Timestamp       int64
	Fields          []EventField
}

// ConvertBlocks maps a set of BlockAndEvents into BlockModel rows, one per
// block, regardless of duplicate hashes across batches (the store's
// idempotent upsert handles duplicates).
func ConvertBlocks(items []BlockAndEvents) []BlockModel {
	out := make([]BlockModel, 0, len(items))
	for _, it := range items {
		b := it.Block
		mainChain := false
		if b.MainChain != nil {
			mainChain = *b.MainChain
		}
		out = append(out, BlockModel{
			Hash:         b.Hash,
			Timestamp:    b.Timestamp,
			ChainFrom:    b.ChainFrom,
			ChainTo:      b.ChainTo,
			Height:       b.Height,
			TxNumber:     int32(len(b.Transactions)),
			Deps:         b.Deps,
			Nonce:        b.Nonce,
			Version:      b.Version,
			DepStateHash: b.DepStateHash,
			TxsHash:      b.TxsHash,
			Target:       b.Target,
			MainChain:    mainChain,
		})
	}
	return out
}

// ConvertTransactions maps a set of BlockAndEvents into TxModel rows,
// deduplicating by tx id within each block (a block may reference the same
// tx id twice in malformed/test data; the natural key is per-block unique).
func ConvertTransactions(items []BlockAndEvents) []TxModel {
	out := make([]TxModel, 0)
	for _, it := range items {
		b := it.Block
		seen := make(map[string]bool, len(b.Transactions))
		for _, tx := range b.Transactions {
			id := tx.TxID()
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, TxModel{
				TxHash:    id,
				BlockHash: b.Hash,
				Timestamp: b.Timestamp,
				GasAmount: tx.Unsigned.GasAmount,
				GasPrice:  tx.Unsigned.GasPrice,
				Inputs:    int32(len(tx.Unsigned.Inputs)),
				Outputs:   int32(len(tx.Unsigned.FixedOutputs)),
			})
		}
	}
	return out
}

// UUIDGenerator is injected so ConvertEvents stays deterministic/testable.
type UUIDGenerator func() string

// ConvertEvents explodes the events carried by every block into EventModel
// rows, assigning each a fresh id via gen.
func ConvertEvents(items []BlockAndEvents, gen UUIDGenerator) []EventModel {
	out := make([]EventModel, 0)
	for _, it := range items {
		for _, ev := range it.Events {
			out = append(out, EventModel{
				ID:              gen(),
				TxID:            ev.TxID,
				BlockHash:       it.Block.Hash,
				ContractAddress: ev.ContractAddress,
				EventIndex:      ev.EventIndex,
				Timestamp:       it.Block.Timestamp,
				Fields:          ev.Fields,
			})
		}
	}
	return out
}

// ProcessorOutputKind discriminates the ProcessorOutput union.
type ProcessorOutputKind int

const (
	OutputBlock ProcessorOutputKind = iota
	OutputEvent
	OutputTx
	OutputCustom
)

// ProcessorOutput is the tagged union produced by a processor's transform
// stage and consumed, exactly once, by its store stage. Only one of the
// typed fields is populated, selected by Kind; Custom carries an opaque
// payload for user-defined processors along with a type tag for safe
// downcasting.
type ProcessorOutput struct {
	Kind       ProcessorOutputKind
	Blocks     []BlockModel
	Events     []EventModel
	Txs        []TxModel
	CustomKind string
	Custom     interface{}
}

// AsCustom returns the Custom payload when Kind is OutputCustom and
// CustomKind equals kind. It returns false otherwise; the caller asserts the
// payload's concrete Go type itself.
func (o ProcessorOutput) AsCustom(kind string) (interface{}, bool) {
	if o.Kind != OutputCustom || o.CustomKind != kind {
		return nil, false
	}
	return o.Custom, true
}
