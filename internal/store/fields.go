package store

import (
	"encoding/json"
	"fmt"

	"bento-indexer/internal/types"
)

func marshalFields(fields []types.EventField) ([]byte, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return b, nil
}

func unmarshalFields(raw []byte) ([]types.EventField, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fields []types.EventField
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return fields, nil
}
