package certify

import (
	"sync"

	"golang.org/x/crypto/ed25519"
)

// Verifier checks a signature over msg under publicKey, returning
// false for any invalid signature — never panicking on malformed key
// material.
type Verifier func(publicKey, msg, sig []byte) bool

var schemeRegistry = struct {
	mu        sync.RWMutex
	verifiers map[Scheme]Verifier
}{
	verifiers: map[Scheme]Verifier{
		SchemeEd25519: ed25519Verify,
	},
}

// RegisterScheme adds (or replaces) a pluggable signature scheme by
// name, per spec.md §4.8: "other schemes pluggable by name."
func RegisterScheme(name Scheme, v Verifier) {
	schemeRegistry.mu.Lock()
	defer schemeRegistry.mu.Unlock()
	schemeRegistry.verifiers[name] = v
}

func lookupScheme(name Scheme) (Verifier, bool) {
	schemeRegistry.mu.RLock()
	defer schemeRegistry.mu.RUnlock()
	v, ok := schemeRegistry.verifiers[name]
	return v, ok
}

func ed25519Verify(publicKey, msg, sig []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), msg, sig)
}
