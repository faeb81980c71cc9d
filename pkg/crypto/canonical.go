// Package crypto provides the signing primitives of the credential pipeline:
// canonical JSON, RSA key handling and RS256 compact JWS.
package crypto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalJSON renders v as compact JSON with object keys sorted at every
// level and without HTML escaping. Numbers keep their literal form.
func CanonicalJSON(v any) ([]byte, error) {
	// 1. Marshal to JSON first to respect json tags
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	// 2. Decode into generic values; maps are re-emitted in key order
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to decode into generic value: %w", err)
	}

	// 3. Marshal back to JSON
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("failed to create canonical json: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MergeObjects marshals every part to a JSON object and merges them left to
// right into one map. Later parts win on key conflicts.
func MergeObjects(parts ...any) (map[string]any, error) {
	out := make(map[string]any)
	for i, part := range parts {
		data, err := json.Marshal(part)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal part %d: %w", i, err)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("part %d is not a JSON object: %w", i, err)
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}
