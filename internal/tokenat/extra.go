package tokenat

import "encoding/json"

// orderedExtra preserves unknown AT fields in the order they were first
// observed, so re-serialization keeps them at a deterministic position
// (after the known fields) and the MAC input stays reproducible.
type orderedExtra struct {
	keys   []string
	values map[string]json.RawMessage
}

type extraKV struct {
	key   string
	value json.RawMessage
}

func newOrderedExtra() *orderedExtra {
	return &orderedExtra{values: make(map[string]json.RawMessage)}
}

func (e *orderedExtra) set(key string, value json.RawMessage) {
	if _, exists := e.values[key]; !exists {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

func (e *orderedExtra) len() int { return len(e.keys) }

func (e *orderedExtra) items() []extraKV {
	out := make([]extraKV, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, extraKV{key: k, value: e.values[k]})
	}
	return out
}
