package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the SHA-256 checksum of data as a lowercase hex string.
// Matches the digest format used by the asset store.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// CollidingHasher forces every digest to start with Prefix while keeping the
// remainder content dependent, so distinct content collides on the
// truncated filename hash but not on the full digest.
type CollidingHasher struct {
	Prefix string
}

func (h CollidingHasher) Sum(data []byte) string {
	full := SHA256Hex(data)
	return h.Prefix + full[len(h.Prefix):]
}
