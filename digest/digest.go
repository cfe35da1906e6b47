// Package digest computes the content addresses used as cache keys and blob
// file names. A digest must be stable across processes and filesystem-safe
// (lowercase hex). Collision resistance only needs to be good enough for
// URL-count workloads; cryptographic strength is not a goal.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Hasher maps an already-canonicalized URL string to its cache key.
type Hasher interface {
	Sum(s string) string
}

// XXHash is the default Hasher: xxhash64 rendered as 16 lowercase hex chars.
// Fast, allocation-light, stable across platforms.
type XXHash struct{}

var _ Hasher = XXHash{}

func (XXHash) Sum(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// SHA256 renders the full 64 hex chars. For callers that want a wider
// keyspace or digests comparable with external sha256 tooling.
type SHA256 struct{}

var _ Hasher = SHA256{}

func (SHA256) Sum(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
