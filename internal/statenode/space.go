// Package statenode wraps statedelta's DAG node with the index that owns
// every live delta, the head pointer, and the fork-head set, plus the
// object-space key-scoping scheme that keeps one program's storage
// from colliding with another's.
package statenode

import (
	"encoding/binary"

	"github.com/veltrix-chain/corechain/internal/chain"
)

// Well-known system object spaces. A system space is global (not scoped to
// any calling program); these ids are reserved and never handed out to
// ordinary programs.
const (
	SpaceMetadata         uint32 = 0 // genesis public key, chain bookkeeping
	SpaceProgramData      uint32 = 1 // hash(bytecode) || bytecode, keyed by program account
	SpaceTransactionNonce uint32 = 2 // account -> u64 nonce, little-endian
	SpaceAccountResources uint32 = 3 // account -> u64 resource-credit allowance, little-endian
)

// MetadataGenesisKey is the key under SpaceMetadata holding the genesis
// Ed25519 public key that every block signature is checked against.
var MetadataGenesisKey = []byte("genesis_public_key")

// ObjectSpace identifies a storage partition: either a global system space,
// or a space scoped to the program that owns it so that programs cannot
// read or overwrite each other's storage.
type ObjectSpace struct {
	System  bool
	ID      uint32
	Program chain.Account
}

// SystemSpace builds a global, unscoped space.
func SystemSpace(id uint32) ObjectSpace {
	return ObjectSpace{System: true, ID: id}
}

// ProgramSpace builds a space scoped to the given program account.
func ProgramSpace(id uint32, program chain.Account) ObjectSpace {
	return ObjectSpace{System: false, ID: id, Program: program}
}

// Key returns the compound backend key: space bytes followed by the
// caller-supplied key bytes.
func (s ObjectSpace) Key(key []byte) []byte {
	out := make([]byte, 0, 1+4+len(chain.Account{})+len(key))
	if s.System {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	var idBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], s.ID)
	out = append(out, idBuf[:]...)
	if !s.System {
		out = append(out, s.Program[:]...)
	}
	out = append(out, key...)
	return out
}

// Prefix returns the compound key's fixed space prefix (no trailing key),
// used to bound next/prev iteration to a single space.
func (s ObjectSpace) Prefix() []byte {
	return s.Key(nil)
}
