// Package mac computes and verifies the keyed MAC carried in every
// Authorization Token. The algorithm is fixed to HMAC-SHA256, hex-lowercase
// encoded; there's no pluggability here, so this package is a thin,
// deliberately non-generic wrapper over crypto/hmac and crypto/sha256.
package mac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Compute returns the lowercase hex HMAC-SHA256 tag of data under key.
func Compute(key, data []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether tag is the valid HMAC-SHA256 of data under key,
// using a constant-time comparison to avoid timing side-channels.
func Verify(key, data []byte, tag string) bool {
	want, err := hex.DecodeString(tag)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, key)
	h.Write(data)
	got := h.Sum(nil)
	return hmac.Equal(got, want)
}
