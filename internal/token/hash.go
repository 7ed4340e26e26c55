package token

import (
	"crypto/sha256"
	"encoding/base64"
)

// The salt is a fixed embedded constant. It defends against accidental
// disclosure of raw token values in logs or config diffs, not against an
// attacker with source access.
const (
	saltPrefix = "cfgrd::v1::"
	saltSuffix = "::reader"
)

// Hash computes the salted one-way digest used to store static credentials:
// base64(SHA-256(prefix + token + suffix)).
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(saltPrefix + raw + saltSuffix))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// StaticSet is the set of statically configured credentials, held only as
// salted hashes. Immutable after construction.
type StaticSet struct {
	hashes map[string]struct{}
}

// NewStaticSet derives a StaticSet from plain-text configured tokens. Empty
// entries are ignored.
func NewStaticSet(raw []string) StaticSet {
	hashes := make(map[string]struct{}, len(raw))
	for _, tok := range raw {
		if tok == "" {
			continue
		}
		hashes[Hash(tok)] = struct{}{}
	}
	return StaticSet{hashes: hashes}
}

// Contains reports whether presented matches a configured credential by
// salted-hash equality.
func (s StaticSet) Contains(presented string) bool {
	if len(s.hashes) == 0 {
		return false
	}
	_, ok := s.hashes[Hash(presented)]
	return ok
}

// Len reports how many distinct credentials are configured.
func (s StaticSet) Len() int { return len(s.hashes) }
