package feedback

import (
	"encoding/json"
	"fmt"
)

// Parse decodes a feedback control-topic payload. Unknown fields are
// ignored; feedback whose "feedback" value is neither "positive" nor
// "negative" parses successfully but is a no-op in Apply.
func Parse(payload []byte) (*Feedback, error) {
	var fb Feedback
	if err := json.Unmarshal(payload, &fb); err != nil {
		return nil, fmt.Errorf("feedback: malformed json: %w", err)
	}
	if fb.Source == "" || fb.Target == "" {
		return nil, fmt.Errorf("feedback: missing source or target")
	}
	return &fb, nil
}
