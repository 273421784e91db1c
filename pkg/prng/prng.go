// Package prng provides the nonce source a Session uses for the CTAPHID_INIT
// handshake.
package prng

import "math/rand"

// Source produces nonce bytes for the INIT handshake.
type Source interface {
	Nonce(n int) []byte
}

// Deterministic is the default Source. It is seeded explicitly rather than
// from crypto/rand so that a test run challenging a simulated authenticator
// is reproducible: it matches the seeded rand_r() the transport core this
// module implements was distilled from.
type Deterministic struct {
	rnd *rand.Rand
}

// NewDeterministic seeds a new deterministic nonce source.
func NewDeterministic(seed int64) *Deterministic {
	return &Deterministic{rnd: rand.New(rand.NewSource(seed))}
}

// Nonce returns n pseudo-random bytes.
func (d *Deterministic) Nonce(n int) []byte {
	b := make([]byte, n)
	_, _ = d.rnd.Read(b)
	return b
}
