package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/harvest/internal/ir"
)

// marshalData serializes an attribute set to canonical JSON.
// A nil set is stored as {}.
func marshalData(attrs map[string]any) (string, error) {
	if attrs == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(attrs)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return string(data), nil
}

// unmarshalData decodes a stored attribute blob. Numbers come back as int64
// when integral and float64 otherwise.
func unmarshalData(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}

	n, err := ir.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	m, _ := n.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// marshalCounts serializes per-kind counts for the run ledger.
func marshalCounts(counts map[string]int) (string, error) {
	obj := make(map[string]any, len(counts))
	for k, v := range counts {
		obj[k] = int64(v)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal counts: %w", err)
	}
	return string(data), nil
}
