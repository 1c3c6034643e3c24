// Package keysource provides an injectable RSA key source. Every
// signed object and every certificate needs a fresh RSA-2048 key pair;
// tests inject a deterministic source so that encode(build(...)) is
// reproducible (spec.md section 8, property 2).
package keysource

import (
	"crypto/rand"
	"crypto/rsa"

	"github.com/pkg/errors"
)

const keyBits = 2048

const publicExponent = 65537

// KeyGen generates RSA-2048 key pairs with public exponent 65537, per
// the algorithm profile in spec.md section 3.
type KeyGen interface {
	Generate() (*rsa.PrivateKey, error)
}

// System is the production KeyGen, backed by crypto/rand.
type System struct{}

// Generate produces a fresh RSA-2048 key pair.
func (System) Generate() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return nil, errors.Wrap(err, "generate RSA key pair")
	}
	if key.PublicKey.E != publicExponent {
		return nil, errors.Errorf("generated key has exponent %d, want %d", key.PublicKey.E, publicExponent)
	}
	return key, nil
}

// Sequence is a deterministic KeyGen that replays a fixed list of keys,
// for use in tests that need byte-stable output. It returns an error on
// exhaustion rather than silently falling back to crypto/rand, so a
// test under-provisioning keys fails loudly.
type Sequence struct {
	Keys []*rsa.PrivateKey
	next int
}

// Generate returns the next key in the sequence.
func (s *Sequence) Generate() (*rsa.PrivateKey, error) {
	if s.next >= len(s.Keys) {
		return nil, errors.Errorf("key sequence exhausted after %d keys", s.next)
	}
	k := s.Keys[s.next]
	s.next++
	return k, nil
}
