package crypto

import (
	"errors"

	"github.com/veltrix-chain/corechain/internal/chain"
)

// BuildMerkleRoot computes a standard binary Merkle tree over SHA-256 of the
// given leaves, promoting an odd last child unchanged to the next level
// rather than re-hashing a duplicate, avoiding a duplicated-leaf
// second-preimage weakness (see DESIGN.md).
func BuildMerkleRoot(leaves [][]byte) (chain.Digest, error) {
	if len(leaves) == 0 {
		return chain.Digest{}, errors.New("crypto: no leaves")
	}

	level := make([]chain.Digest, len(leaves))
	for i, l := range leaves {
		level[i] = Sha256(l)
	}

	for len(level) > 1 {
		next := make([]chain.Digest, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, Sha256Concat(level[i][:], level[i+1][:]))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}

	return level[0], nil
}
