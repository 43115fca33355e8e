package shared

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// NewID returns a prefixed random identifier, e.g. "sess_3f9c...".
func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// Timestamp returns the current UTC time formatted for event payloads.
func Timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
