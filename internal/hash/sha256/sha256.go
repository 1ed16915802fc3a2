// Package sha256 provides the URL hasher used for cache addressing.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements scrape.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// HashURL returns the hex digest of the URL. The digest is the cache
// storage key, so it must stay stable across releases.
func (Hasher) HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
