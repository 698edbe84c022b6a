package tokenat

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/trustmesh/interceptor/internal/mac"
)

const testKey = "4c1c4d7e2b9f7a0e8b6d3e5f1a2c7b4d"

func validPayload() []byte {
	at := &AT{
		IssuerBroker: "B0",
		ClientID:     "C1",
		Signers:      []string{"B0", "B1"},
		PublishTopics:   []string{"home/kitchen"},
		SubscribeTopics: []string{"home/bedroom"},
		Message:      "hello",
		MsgID:        7,
	}
	noMAC, _ := at.SerializeWithoutMAC()
	tag := mac.Compute([]byte(testKey), noMAC)
	sealed := at.AttachMAC(tag)
	b, _ := sealed.Serialize()
	return b
}

func TestParseNotJSONPassesThrough(t *testing.T) {
	_, err := Parse([]byte("plain text"))
	if !errors.Is(err, ErrNotJSON) {
		t.Fatalf("expected ErrNotJSON, got %v", err)
	}
}

func TestParseWhitespaceThenBrace(t *testing.T) {
	payload := validPayload()
	padded := append([]byte("   \n"), payload...)
	at, err := Parse(padded)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if at.ClientID != "C1" {
		t.Fatalf("ClientID = %q, want C1", at.ClientID)
	}
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	var malformed *MalformedJSONError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedJSONError, got %v (%T)", err, err)
	}
}

func TestParseMissingField(t *testing.T) {
	_, err := Parse([]byte(`{"b":"B0"}`))
	var missing *MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
}

func TestParseWrongType(t *testing.T) {
	_, err := Parse([]byte(`{"b":"B0","c":"C1","msg":"hi","msg_id":"not-a-number"}`))
	var wrong *WrongTypeError
	if !errors.As(err, &wrong) {
		t.Fatalf("expected WrongTypeError, got %v", err)
	}
}

// TestMACRoundTrip checks that for any well-formed AT,
// verify(attach_mac(strip_mac(t), compute_mac(serialize_no_mac(t)))) succeeds.
func TestMACRoundTrip(t *testing.T) {
	payload := validPayload()

	parsed, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	stripped, tag := parsed.StripMAC()
	noMAC, err := stripped.SerializeWithoutMAC()
	if err != nil {
		t.Fatalf("SerializeWithoutMAC: %v", err)
	}
	if !mac.Verify([]byte(testKey), noMAC, tag) {
		t.Fatalf("MAC round-trip failed to verify")
	}
}

func TestUnknownFieldsRoundTrip(t *testing.T) {
	payload := []byte(`{"b":"B0","c":"C1","S":["B0"],"Fp":[],"Fs":[],"msg":"hi","msg_id":1,"custom_field":"keepme","hmac":"deadbeef"}`)
	at, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := at.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	var roundTripped map[string]interface{}
	if err := json.Unmarshal(out, &roundTripped); err != nil {
		t.Fatalf("re-parse serialized output: %v", err)
	}
	if roundTripped["custom_field"] != "keepme" {
		t.Fatalf("unknown field lost on round trip: %v", roundTripped)
	}
}

func TestAppendSignerIdempotent(t *testing.T) {
	at := &AT{Signers: []string{"B0", "B1"}}
	if !at.AppendSigner("B3") {
		t.Fatalf("expected first append to mutate")
	}
	if at.AppendSigner("B3") {
		t.Fatalf("expected second append of same id to be a no-op")
	}
	count := 0
	for _, s := range at.Signers {
		if s == "B3" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("B3 appears %d times in signer chain, want 1", count)
	}
}

func TestLastSigner(t *testing.T) {
	at := &AT{Signers: []string{"B0", "B1"}}
	if at.LastSigner() != "B1" {
		t.Fatalf("LastSigner = %q, want B1", at.LastSigner())
	}
	empty := &AT{}
	if empty.LastSigner() != "" {
		t.Fatalf("LastSigner on empty chain = %q, want empty", empty.LastSigner())
	}
}
