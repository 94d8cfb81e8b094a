package statenode

import (
	"errors"
	"sync"

	"github.com/veltrix-chain/corechain/internal/backend"
	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/statedelta"
)

var (
	ErrUnknownDelta      = errors.New("statenode: unknown delta id")
	ErrParentNotComplete = errors.New("statenode: parent is not complete")
	ErrAlreadyOpen       = errors.New("statenode: index already open")
)

// ForkComparator decides which fork head becomes the new index head. It is
// handed the index directly since re-election needs the full candidate set
// plus the currently-elected head. FIFO (the only comparator required for
// the core) is the default.
type ForkComparator func(idx *Index) *statedelta.Delta

// Index owns every live delta keyed by id, tracks one designated head, and
// maintains the set of fork heads (DAG leaves). All graph-wide mutations
// (Add, Commit, Finalize) are serialized by mu, which also backstops the
// approval-propagation and finalization races that statedelta.Delta itself
// does not guard against.
type Index struct {
	mu         sync.RWMutex
	deltas     map[chain.Digest]*statedelta.Delta
	heights    map[chain.Digest]uint64
	root       *statedelta.Delta
	head       *statedelta.Delta
	forkHeads  map[chain.Digest]*statedelta.Delta
	headOrder  []chain.Digest
	comparator ForkComparator
	opened     bool
}

// NewIndex constructs an unopened index with the FIFO fork comparator.
func NewIndex() *Index {
	idx := &Index{
		deltas:    map[chain.Digest]*statedelta.Delta{},
		heights:   map[chain.Digest]uint64{},
		forkHeads: map[chain.Digest]*statedelta.Delta{},
	}
	idx.comparator = FIFOComparator
	return idx
}

// SetForkComparator overrides the reference FIFO algorithm.
func (idx *Index) SetForkComparator(c ForkComparator) { idx.comparator = c }

// Open either wraps an already-populated backend as the root (its revision
// is nonzero) or calls genesisInit against a fresh root delta. The root is
// always finalized and complete: it represents irreversible committed
// state by construction.
func (idx *Index) Open(b backend.Backend, genesisInit func(*statedelta.Delta) error) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.opened {
		return ErrAlreadyOpen
	}
	root := statedelta.NewRoot(b)
	if b.Revision() == 0 && genesisInit != nil {
		if err := genesisInit(root); err != nil {
			return err
		}
	}
	root.MarkComplete()
	root.MarkFinalized()

	idx.root = root
	idx.deltas[root.ID()] = root
	idx.heights[root.ID()] = 0
	idx.head = root
	idx.forkHeads[root.ID()] = root
	idx.headOrder = append(idx.headOrder, root.ID())
	idx.opened = true
	return nil
}

// Root returns the current root delta.
func (idx *Index) Root() *statedelta.Delta {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.root
}

// Head returns the currently elected head.
func (idx *Index) Head() *statedelta.Delta {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.head
}

// Height reports the height Add registered a delta at.
func (idx *Index) Height(id chain.Digest) (uint64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	h, ok := idx.heights[id]
	return h, ok
}

// Get looks up a delta by id.
func (idx *Index) Get(id chain.Digest) (*statedelta.Delta, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	d, ok := idx.deltas[id]
	return d, ok
}

// Add registers a newly-created delta at the given height, updating the
// fork-head set: its parents are no longer leaves, and it becomes one.
func (idx *Index) Add(d *statedelta.Delta, height uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.deltas[d.ID()] = d
	idx.heights[d.ID()] = height
	for _, p := range d.Parents() {
		delete(idx.forkHeads, p.ID())
	}
	idx.forkHeads[d.ID()] = d
	idx.headOrder = append(idx.headOrder, d.ID())
}

// AtRevision walks parents of tip until a delta at the given height is
// found.
func (idx *Index) AtRevision(height uint64, tip chain.Digest) (*statedelta.Delta, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	cur, ok := idx.deltas[tip]
	if !ok {
		return nil, ErrUnknownDelta
	}
	for {
		h, ok := idx.heights[cur.ID()]
		if ok && h == height {
			return cur, nil
		}
		parents := cur.Parents()
		if len(parents) == 0 {
			return nil, ErrUnknownDelta
		}
		cur = parents[0]
	}
}

// Remove deletes id from the index unless it appears in whitelist.
func (idx *Index) Remove(id chain.Digest, whitelist map[chain.Digest]struct{}) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, keep := whitelist[id]; keep {
		return
	}
	delete(idx.deltas, id)
	delete(idx.heights, id)
	delete(idx.forkHeads, id)
}

// Commit collapses ptr's ancestry down to a new root and updates the
// index's bookkeeping to match.
func (idx *Index) Commit(ptr *statedelta.Delta) (chain.Digest, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	mr, err := ptr.Commit()
	if err != nil {
		return chain.Digest{}, err
	}
	idx.root = ptr
	return mr, nil
}

// Finalize contributes creator's approval weight to ptr's ancestors,
// potentially crossing some ancestor's threshold and finalizing that
// ancestor's grandparents (statedelta.Delta.ContributeApproval) — the
// irreversibility signal used by callers deciding how far back it is safe to
// commit, not a gate on attaching further blocks — then re-elects the head
// under the configured fork comparator.
func (idx *Index) Finalize(ptr *statedelta.Delta, creator chain.Account, weight uint64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ptr.ContributeApproval(creator, weight)
	idx.head = idx.comparator(idx)
}

// FIFOComparator keeps the current head if it is still a live fork head;
// otherwise it elects the earliest-registered fork head.
func FIFOComparator(idx *Index) *statedelta.Delta {
	if idx.head != nil {
		if _, stillLive := idx.forkHeads[idx.head.ID()]; stillLive {
			return idx.head
		}
	}
	for _, id := range idx.headOrder {
		if d, ok := idx.forkHeads[id]; ok {
			return d
		}
	}
	return idx.head
}
