package id

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRequestID returns a fresh 32-char lowercase hex token, the format the
// Ax-Request-Id header expects. Callers that cannot supply their own
// idempotency key may generate one with this.
func NewRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
