package id

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// PositionID derives the unique id for a new position from its creator and a
// caller-chosen nonce: 64 hex characters. The same (trader, nonce) pair always
// yields the same id, so a nonce can never be reused once a position existed.
func PositionID(trader string, nonce uint64) string {
	h := sha256.New()
	h.Write([]byte(trader))
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])
	return hex.EncodeToString(h.Sum(nil))
}
