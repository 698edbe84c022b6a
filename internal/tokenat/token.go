// Package tokenat implements the Authorization Token (AT) carried in every
// application message payload: parsing, canonical serialization for MAC
// input, and attach/strip of the hmac field.
//
// Canonical ordering: the serializer writes the known fields explicitly in
// AT's declaration order below (b, c, S, Fp, Fs, msg, msg_id, then hmac
// last), which is the wire key order both sides must agree on for the MAC to
// verify. Unknown extra fields observed on parse are preserved and
// re-emitted after the known fields, in first-seen order, so round-tripping
// an AT with vendor extensions keeps them inside the MAC input.
//
// Called by: interceptor
// Calls: encoding/json only
package tokenat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AT is the Authorization Token carried in every application message.
type AT struct {
	IssuerBroker string   `json:"b"`
	ClientID     string   `json:"c"`
	Signers      []string `json:"S"`
	PublishTopics   []string `json:"Fp"`
	SubscribeTopics []string `json:"Fs"`
	Message      string `json:"msg"`
	MsgID        int64  `json:"msg_id"`
	MAC          string `json:"hmac,omitempty"`

	// Extra preserves unknown fields in first-seen order so they survive a
	// parse/serialize round trip and remain part of the MAC input.
	Extra *orderedExtra `json:"-"`
}

// ErrNotJSON indicates the payload's first non-whitespace byte isn't '{' —
// the interceptor treats this as non-AT traffic and passes it through
// unchanged rather than treating it as an error.
var ErrNotJSON = fmt.Errorf("tokenat: payload is not a JSON object")

// MalformedJSONError wraps a JSON syntax error encountered while parsing an
// AT whose payload did look like a JSON object.
type MalformedJSONError struct{ Err error }

func (e *MalformedJSONError) Error() string { return "tokenat: malformed json: " + e.Err.Error() }
func (e *MalformedJSONError) Unwrap() error { return e.Err }

// MissingFieldError reports a required AT field absent from the payload.
type MissingFieldError struct{ Field string }

func (e *MissingFieldError) Error() string { return "tokenat: missing field " + e.Field }

// WrongTypeError reports a required AT field present with the wrong JSON type.
type WrongTypeError struct{ Field string }

func (e *WrongTypeError) Error() string { return "tokenat: wrong type for field " + e.Field }

// looksLikeJSON reports whether the first non-whitespace byte is '{'.
func looksLikeJSON(payload []byte) bool {
	for _, b := range payload {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == '{'
		}
	}
	return false
}

// Parse decodes payload into an AT. Returns ErrNotJSON (not a hard parse
// error) when the payload doesn't look like a JSON object at all — callers
// should pass such payloads through unchanged rather than drop them.
func Parse(payload []byte) (*AT, error) {
	if !looksLikeJSON(payload) {
		return nil, ErrNotJSON
	}

	raw, order, err := decodeOrderedObject(payload)
	if err != nil {
		return nil, &MalformedJSONError{Err: err}
	}

	at := &AT{}

	if err := requireString(raw, "b", &at.IssuerBroker); err != nil {
		return nil, err
	}
	if err := requireString(raw, "c", &at.ClientID); err != nil {
		return nil, err
	}
	if err := requireString(raw, "msg", &at.Message); err != nil {
		return nil, err
	}
	if err := requireInt(raw, "msg_id", &at.MsgID); err != nil {
		return nil, err
	}
	if err := optionalStringSlice(raw, "S", &at.Signers); err != nil {
		return nil, err
	}
	if err := optionalStringSlice(raw, "Fp", &at.PublishTopics); err != nil {
		return nil, err
	}
	if err := optionalStringSlice(raw, "Fs", &at.SubscribeTopics); err != nil {
		return nil, err
	}
	if v, ok := raw["hmac"]; ok {
		if err := json.Unmarshal(v, &at.MAC); err != nil {
			return nil, &WrongTypeError{Field: "hmac"}
		}
	}

	at.Extra = extractExtra(raw, order)

	return at, nil
}

var knownFields = map[string]bool{
	"b": true, "c": true, "S": true, "Fp": true, "Fs": true,
	"msg": true, "msg_id": true, "hmac": true,
}

func extractExtra(raw map[string]json.RawMessage, order []string) *orderedExtra {
	extra := newOrderedExtra()
	for _, k := range order {
		if knownFields[k] {
			continue
		}
		extra.set(k, raw[k])
	}
	if extra.len() == 0 {
		return nil
	}
	return extra
}

func requireString(raw map[string]json.RawMessage, field string, dst *string) error {
	v, ok := raw[field]
	if !ok {
		return &MissingFieldError{Field: field}
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return &WrongTypeError{Field: field}
	}
	return nil
}

func requireInt(raw map[string]json.RawMessage, field string, dst *int64) error {
	v, ok := raw[field]
	if !ok {
		return &MissingFieldError{Field: field}
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return &WrongTypeError{Field: field}
	}
	return nil
}

func optionalStringSlice(raw map[string]json.RawMessage, field string, dst *[]string) error {
	v, ok := raw[field]
	if !ok {
		return nil
	}
	var s []string
	if err := json.Unmarshal(v, &s); err != nil {
		return &WrongTypeError{Field: field}
	}
	*dst = s
	return nil
}

// serialize builds the JSON object for at, omitting the hmac field when
// includeMAC is false. Field order matches the struct declaration order,
// followed by any preserved unknown fields in first-seen order.
func (at *AT) serialize(includeMAC bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	writeField := func(key string, value interface{}) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyBytes, _ := json.Marshal(key)
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(valBytes)
		return nil
	}

	if err := writeField("b", at.IssuerBroker); err != nil {
		return nil, err
	}
	if err := writeField("c", at.ClientID); err != nil {
		return nil, err
	}
	if err := writeField("S", signersOrEmpty(at.Signers)); err != nil {
		return nil, err
	}
	if err := writeField("Fp", at.PublishTopics); err != nil {
		return nil, err
	}
	if err := writeField("Fs", at.SubscribeTopics); err != nil {
		return nil, err
	}
	if err := writeField("msg", at.Message); err != nil {
		return nil, err
	}
	if err := writeField("msg_id", at.MsgID); err != nil {
		return nil, err
	}

	if at.Extra != nil {
		for _, kv := range at.Extra.items() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			keyBytes, _ := json.Marshal(kv.key)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			buf.Write(kv.value)
		}
	}

	if includeMAC {
		if err := writeField("hmac", at.MAC); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func signersOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SerializeWithoutMAC returns the unformatted JSON of at with the hmac field
// absent — the exact bytes the MAC is computed over.
func (at *AT) SerializeWithoutMAC() ([]byte, error) {
	return at.serialize(false)
}

// Serialize returns the unformatted JSON of at including its current hmac
// field (empty string if unset).
func (at *AT) Serialize() ([]byte, error) {
	return at.serialize(true)
}

// AttachMAC returns a copy of at with MAC set to tag.
func (at *AT) AttachMAC(tag string) *AT {
	clone := *at
	clone.MAC = tag
	return &clone
}

// StripMAC returns a copy of at with MAC cleared, and the tag that was
// removed.
func (at *AT) StripMAC() (*AT, string) {
	clone := *at
	tag := clone.MAC
	clone.MAC = ""
	return &clone, tag
}

// HasSigner reports whether id already appears in the signer chain.
func (at *AT) HasSigner(id string) bool {
	for _, s := range at.Signers {
		if s == id {
			return true
		}
	}
	return false
}

// AppendSigner appends id to the signer chain if absent, returning whether a
// mutation happened.
func (at *AT) AppendSigner(id string) bool {
	if at.HasSigner(id) {
		return false
	}
	at.Signers = append(at.Signers, id)
	return true
}

// LastSigner returns the last element of S, or "" if S is empty.
func (at *AT) LastSigner() string {
	if len(at.Signers) == 0 {
		return ""
	}
	return at.Signers[len(at.Signers)-1]
}
