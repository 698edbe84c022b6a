package tokenat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeOrderedObject decodes a top-level JSON object into a map of raw
// field values plus the order in which keys first appeared on the wire.
// encoding/json's map decoding loses key order, so this walks the token
// stream once to record it before unmarshaling each value.
func decodeOrderedObject(payload []byte) (map[string]json.RawMessage, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	raw := make(map[string]json.RawMessage)
	var order []string

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected string key, got %v", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}

		if _, seen := raw[key]; !seen {
			order = append(order, key)
		}
		raw[key] = value
	}

	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	return raw, order, nil
}
