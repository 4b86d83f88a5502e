// Package identity computes content-addressed identifiers for memory items.
// All functions are pure and deterministic: identical content always yields
// the identical id, regardless of which run produced it or when.
package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// MemoryID produces a SHA-256 hex digest over the normalized title and
// content. Each field is encoded with a 4-byte big-endian length prefix
// before hashing, which avoids delimiter collisions when freeform text
// contains whatever separator would otherwise be chosen.
//
// Tags and domain are deliberately excluded: they are descriptive metadata,
// not identity.
func MemoryID(title, content string) string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s))) //nolint:gosec // field lengths are bounded by model validation
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(Normalize(title))
	writeField(Normalize(content))
	return hex.EncodeToString(h.Sum(nil))
}

// Normalize lowercases s and collapses all runs of whitespace to a single
// space, trimming the ends. Case and formatting differences therefore never
// produce distinct memory ids.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
