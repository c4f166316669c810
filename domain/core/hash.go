package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

func (h Hash) String() string {
	return string(h)
}

func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first n hex characters of the hash
func (h Hash) Short(n int) string {
	if n <= 0 || n >= len(h) {
		return string(h)
	}
	return string(h[:n])
}

// ContentHash is the provenance fingerprint attached to ingested content
func ContentHash(content string) string {
	return NewHash([]byte(content)).Short(8)
}

// Seed derives a deterministic 64-bit seed from text
func Seed(text string) uint64 {
	sum := sha256.Sum256([]byte(text))
	var seed uint64
	for i := 0; i < 8; i++ {
		seed = seed<<8 | uint64(sum[i])
	}
	return seed
}
