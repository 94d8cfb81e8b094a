package statenode

import (
	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/statedelta"
)

// PermanentNode is a handle over a delta that is registered with a delta
// index and can be committed through it; the delta need not be finalized.
type PermanentNode struct {
	delta *statedelta.Delta
	index *Index
}

// NewPermanentNode wraps an already-indexed delta.
func NewPermanentNode(d *statedelta.Delta, idx *Index) *PermanentNode {
	return &PermanentNode{delta: d, index: idx}
}

func (n *PermanentNode) Delta() *statedelta.Delta { return n.delta }

// MakeChild requires the receiver to be complete (sealed against further
// writes, its merkle root fixed); the child is registered with the same
// index at height+1. Completeness, not BFT finality, gates attachment: a
// block's own delta becomes complete the moment it finishes applying, while
// finality is a two-generation-lagging property of its approval-weighted
// ancestry (statedelta.Delta.ContributeApproval) used for irreversibility,
// not for admitting the next block.
func (n *PermanentNode) MakeChild(childID chain.Digest, approvalThreshold uint64, height uint64) (*PermanentNode, error) {
	if !n.delta.Complete() {
		return nil, ErrParentNotComplete
	}
	child := statedelta.NewChild(childID, []*statedelta.Delta{n.delta}, approvalThreshold)
	n.index.Add(child, height)
	return &PermanentNode{delta: child, index: n.index}, nil
}

// TemporaryNode wraps a delta that was never registered with an index and
// can only be squashed back into its parent, never committed.
type TemporaryNode struct {
	delta *statedelta.Delta
}

// MakeTemporaryChild creates an unregistered, squash-only child of parent.
func MakeTemporaryChild(parent *statedelta.Delta) *TemporaryNode {
	child := statedelta.NewChild(chain.Digest{}, []*statedelta.Delta{parent}, 0)
	return &TemporaryNode{delta: child}
}

func (n *TemporaryNode) Delta() *statedelta.Delta { return n.delta }

// MakeChild stacks another squash-only layer on top of this one.
func (n *TemporaryNode) MakeChild() *TemporaryNode {
	return MakeTemporaryChild(n.delta)
}

// Squash absorbs this node's delta into its parent.
func (n *TemporaryNode) Squash() error {
	return n.delta.Squash()
}
