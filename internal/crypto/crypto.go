// Package crypto wires the engine's signing and hashing primitives. Ed25519
// is used directly from the standard library rather than an ecosystem
// wrapper, since the standard library implementation is sufficient and
// widely used for it. Keccak-256 and RIPEMD-160 come from ecosystem
// libraries instead, since the standard library has no equivalent.
package crypto

import (
	"crypto/ed25519"
	"crypto/sha256"

	"github.com/veltrix-chain/corechain/internal/chain"
)

// GenerateKey returns a fresh Ed25519 key pair.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}

// Sign signs digest d with priv, returning a fixed-size Signature.
func Sign(priv ed25519.PrivateKey, d chain.Digest) chain.Signature {
	raw := ed25519.Sign(priv, d[:])
	var sig chain.Signature
	copy(sig[:], raw)
	return sig
}

// Verify checks sig against digest d under the given 32-byte Ed25519 public key.
func Verify(pub []byte, d chain.Digest, sig chain.Signature) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), d[:], sig[:])
}

// Sha256 computes the SHA-256 digest of data.
func Sha256(data []byte) chain.Digest {
	return chain.Digest(sha256.Sum256(data))
}

// Sha256Concat computes the SHA-256 digest of the concatenation of parts,
// used by the Merkle builder.
func Sha256Concat(parts ...[]byte) chain.Digest {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var d chain.Digest
	copy(d[:], h.Sum(nil))
	return d
}
