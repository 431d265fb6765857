package ledger

import (
	"bytes"
	"fmt"
	"math"

	"github.com/BurntSushi/toml"

	"github.com/aretw0/strata/pkg/core"
)

// Marshal serializes the ledger as flat TOML pairs, one per kind of the
// schema, keyed by the kind's ledger key. Kinds missing from l are written as 0.
func Marshal(schema *core.Schema, l Ledger) (string, error) {
	flat := make(map[string]uint32, len(schema.Kinds()))
	for _, k := range schema.Kinds() {
		flat[k.LedgerKey] = l.Get(k.ID)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(flat); err != nil {
		return "", fmt.Errorf("failed to encode ledger: %w", err)
	}
	return buf.String(), nil
}

// Unmarshal parses a ledger body written by Marshal. Both current keys and
// aliases are accepted; unknown keys are ignored. Values must be
// non-negative integers.
func Unmarshal(schema *core.Schema, body string) (Ledger, error) {
	var raw map[string]any
	if _, err := toml.Decode(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}

	out := make(Ledger)
	for _, k := range schema.Kinds() {
		keys := append([]string{k.LedgerKey}, k.Aliases...)
		for _, key := range keys {
			v, ok := raw[key]
			if !ok {
				continue
			}
			n, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("ledger key %q: expected integer, got %T", key, v)
			}
			if n < 0 || n > math.MaxUint32 {
				return nil, fmt.Errorf("ledger key %q: value %d out of range", key, n)
			}
			out[k.ID] = uint32(n)
			break
		}
	}
	return out, nil
}
