// Package statedelta implements the state DAG's node type: a copy-on-write
// overlay over a backend, chaining reads through parents, collecting
// tombstones and read-audit keys locally, and supporting squash, commit,
// conflict detection and BFT-style approval/finalization.
//
// Delta does not lock itself: the DAG-wide invariants (approvals,
// finalized, parent linkage) are serialized by the owning delta index's
// single mutex, to resolve approval propagation races against
// finalization races. Concurrent use of a bare Delta is the caller's
// responsibility.
package statedelta

import (
	"bytes"
	"errors"
	"sort"
	"strings"

	"github.com/veltrix-chain/corechain/internal/backend"
	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/crypto"
)

var (
	ErrComplete       = errors.New("statedelta: delta is complete")
	ErrNotComplete    = errors.New("statedelta: merkle root requires a complete delta")
	ErrCannotCommitRoot = errors.New("statedelta: cannot commit a root")
	ErrSquashParents  = errors.New("statedelta: squash requires exactly one parent")
	ErrNoRoot         = errors.New("statedelta: no root reachable from ancestry")
	ErrMultipleRoots  = errors.New("statedelta: ancestry reaches more than one root")
)

// Delta is one node of the state DAG.
type Delta struct {
	id                chain.Digest
	backend           backend.Backend
	removed           map[string]struct{}
	readKeys          map[string]struct{}
	parents           []*Delta
	approvals         map[chain.Account]uint64
	approvalThreshold uint64
	finalized         bool
	complete          bool
	merkleRoot        *chain.Digest
}

// NewRoot creates a root delta directly over a backend.
func NewRoot(b backend.Backend) *Delta {
	return &Delta{
		backend:  b,
		removed:  map[string]struct{}{},
		readKeys: map[string]struct{}{},
	}
}

// NewChild creates a child delta with its own empty local backend, owned by
// the given parents (one for a linear child, two or more for a merge).
func NewChild(id chain.Digest, parents []*Delta, approvalThreshold uint64) *Delta {
	return &Delta{
		id:                id,
		backend:           backend.NewMemoryBackend(),
		removed:           map[string]struct{}{},
		readKeys:          map[string]struct{}{},
		parents:           append([]*Delta(nil), parents...),
		approvalThreshold: approvalThreshold,
	}
}

func (d *Delta) ID() chain.Digest   { return d.id }
func (d *Delta) IsRoot() bool       { return len(d.parents) == 0 }
func (d *Delta) Parents() []*Delta  { return d.parents }
func (d *Delta) Finalized() bool    { return d.finalized }
func (d *Delta) Complete() bool     { return d.complete }
func (d *Delta) Approvals() map[chain.Account]uint64 { return d.approvals }

// MarkComplete freezes the delta against further writes, enabling
// MerkleRoot() to be computed.
func (d *Delta) MarkComplete() { d.complete = true }

// MarkFinalized is used by the root / genesis path to seed a
// pre-finalized node (the root is finalized by construction).
func (d *Delta) MarkFinalized() { d.finalized = true }

// Get resolves key by: local tombstone (absence), local backend (hit), or
// a breadth-first walk of parents, returning the first hit or absence on
// the first tombstone encountered. Any parent consultation records key in
// read_keys.
func (d *Delta) Get(key []byte) ([]byte, bool) {
	if _, tomb := d.removed[string(key)]; tomb {
		return nil, false
	}
	if v, ok := d.backend.Get(key); ok {
		return v, true
	}
	if len(d.parents) == 0 {
		return nil, false
	}
	d.readKeys[string(key)] = struct{}{}

	visited := map[*Delta]bool{d: true}
	queue := append([]*Delta{}, d.parents...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if _, tomb := cur.removed[string(key)]; tomb {
			return nil, false
		}
		if v, ok := cur.backend.Get(key); ok {
			return v, true
		}
		queue = append(queue, cur.parents...)
	}
	return nil, false
}

// Put writes key/value into the local backend, returning the signed size
// delta for metering.
func (d *Delta) Put(key, value []byte) (int64, error) {
	if d.complete {
		return 0, ErrComplete
	}
	return d.backend.Put(key, value), nil
}

// Remove tombstones key. On a root, this is a no-op unless key is locally
// present.
func (d *Delta) Remove(key []byte) (int64, error) {
	if d.complete {
		return 0, ErrComplete
	}
	if d.IsRoot() {
		return d.backend.Remove(key), nil
	}
	val, ok := d.Get(key)
	if !ok {
		return 0, nil
	}
	delete(d.readKeys, string(key)) // a tombstone is a write, not merely a read
	sizeDelta := -(int64(len(key)) + int64(len(val)))
	d.removed[string(key)] = struct{}{}
	d.backend.Remove(key)
	return sizeDelta, nil
}

// Squash absorbs this delta into its single parent. A no-op on a root.
func (d *Delta) Squash() error {
	if d.IsRoot() {
		return nil
	}
	if len(d.parents) != 1 {
		return ErrSquashParents
	}
	p := d.parents[0]
	parentIsRoot := p.IsRoot()

	for k := range d.removed {
		p.backend.Remove([]byte(k))
		if !parentIsRoot {
			p.removed[k] = struct{}{}
		}
	}
	for _, k := range d.backend.Keys() {
		ks := string(k)
		if !parentIsRoot {
			delete(p.removed, ks)
		}
		v, _ := d.backend.Get(k)
		p.backend.Put(k, v)
	}

	d.backend.Clear()
	d.removed = map[string]struct{}{}
	d.readKeys = map[string]struct{}{}
	return nil
}

// Commit walks the ancestor chain to its single root and applies every
// non-root ancestor's tombstones then writes, in causal (root-adjacent
// first) order, inside one write batch on the root backend. This delta
// then becomes the new root.
func (d *Delta) Commit() (chain.Digest, error) {
	if d.IsRoot() {
		return chain.Digest{}, ErrCannotCommitRoot
	}

	depth := map[*Delta]int{d: 0}
	order := []*Delta{d}
	var root *Delta
	queue := []*Delta{d}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.IsRoot() {
			if root != nil && root != cur {
				return chain.Digest{}, ErrMultipleRoots
			}
			root = cur
			continue
		}
		for _, p := range cur.parents {
			if _, seen := depth[p]; !seen {
				depth[p] = depth[cur] + 1
				order = append(order, p)
				queue = append(queue, p)
			}
		}
	}
	if root == nil {
		return chain.Digest{}, ErrNoRoot
	}

	nonRoot := make([]*Delta, 0, len(order))
	for _, n := range order {
		if n != root {
			nonRoot = append(nonRoot, n)
		}
	}
	sort.SliceStable(nonRoot, func(i, j int) bool { return depth[nonRoot[i]] > depth[nonRoot[j]] })

	root.backend.StartWriteBatch()
	for _, n := range nonRoot {
		for k := range n.removed {
			root.backend.Remove([]byte(k))
		}
		for _, k := range n.backend.Keys() {
			v, _ := n.backend.Get(k)
			root.backend.Put(k, v)
		}
	}
	newRevision := root.backend.Revision() + 1
	mr, err := merkleRootOverBackend(root.backend)
	if err != nil {
		return chain.Digest{}, err
	}
	root.backend.StoreMetadata(newRevision, d.id, mr)
	root.backend.EndWriteBatch()

	d.parents = nil
	d.removed = map[string]struct{}{}
	d.backend = root.backend
	return mr, nil
}

// HasConflict implements the DAG equivalent of optimistic-concurrency
// validation between two deltas that may share ancestry.
func (d *Delta) HasConflict(other *Delta) bool {
	a := ancestorsInclusive(d)
	b := ancestorsInclusive(other)

	common := map[*Delta]bool{}
	for n := range a {
		if b[n] {
			common[n] = true
		}
	}
	var aOnly, bOnly []*Delta
	for n := range a {
		if !common[n] {
			aOnly = append(aOnly, n)
		}
	}
	for n := range b {
		if !common[n] {
			bOnly = append(bOnly, n)
		}
	}

	for _, x := range aOnly {
		for _, y := range bOnly {
			if writeWriteConflict(x, y) || readAfterWrite(x, y) || readAfterWrite(y, x) {
				return true
			}
		}
	}
	return false
}

func ancestorsInclusive(d *Delta) map[*Delta]bool {
	out := map[*Delta]bool{d: true}
	queue := append([]*Delta{}, d.parents...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if out[cur] {
			continue
		}
		out[cur] = true
		queue = append(queue, cur.parents...)
	}
	return out
}

func writeWriteConflict(a, b *Delta) bool {
	for k := range a.removed {
		if _, ok := b.removed[k]; ok {
			return true
		}
		if _, ok := b.backend.Get([]byte(k)); ok {
			return true
		}
	}
	for _, k := range a.backend.Keys() {
		ks := string(k)
		if _, ok := b.removed[ks]; ok {
			return true
		}
		if _, ok := b.backend.Get(k); ok {
			return true
		}
	}
	return false
}

func readAfterWrite(a, b *Delta) bool {
	for k := range a.readKeys {
		if _, ok := b.removed[k]; ok {
			return true
		}
		if _, ok := b.backend.Get([]byte(k)); ok {
			return true
		}
	}
	return false
}

// ContributeApproval is invoked when this delta is created by creator with
// the given weight: (creator, weight) is inserted into every non-finalized
// ancestor's approval set; crossing an ancestor's own threshold finalizes
// that ancestor's grandparents and beyond, never the ancestor itself nor its
// immediate parents (finalized nodes never receive further approval
// updates).
func (d *Delta) ContributeApproval(creator chain.Account, weight uint64) {
	visited := map[*Delta]bool{}
	queue := append([]*Delta{}, d.parents...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur.finalized {
			continue
		}
		if cur.approvals == nil {
			cur.approvals = map[chain.Account]uint64{}
		}
		cur.approvals[creator] = weight
		var sum uint64
		for _, w := range cur.approvals {
			sum += w
		}
		if sum >= cur.approvalThreshold {
			finalizeChain(cur)
		}
		queue = append(queue, cur.parents...)
	}
}

// finalizeChain finalizes cur's grandparents and beyond: it walks cur's
// parents, and at each node visited marks that node's own parents finalized
// (never the visited node itself), continuing past a node only while it
// remains unfinalized. cur and cur's immediate parents are left untouched —
// finalization always lags two generations behind the threshold crossing.
func finalizeChain(cur *Delta) {
	visited := map[*Delta]bool{}
	queue := append([]*Delta{}, cur.parents...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if visited[node] {
			continue
		}
		visited[node] = true
		for _, p := range node.parents {
			p.finalized = true
		}
		if !node.finalized {
			queue = append(queue, node.parents...)
		}
	}
}

// MerkleRoot computes the Merkle root over the delta's local writes and
// tombstones (tombstones emit an empty value span). Requires Complete().
// The result is memoized.
func (d *Delta) MerkleRoot() (chain.Digest, error) {
	if !d.complete {
		return chain.Digest{}, ErrNotComplete
	}
	if d.merkleRoot != nil {
		return *d.merkleRoot, nil
	}

	keys := map[string][]byte{}
	for _, k := range d.backend.Keys() {
		v, _ := d.backend.Get(k)
		keys[string(k)] = v
	}
	for k := range d.removed {
		keys[k] = nil
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	leaves := make([][]byte, 0, len(sorted)*2)
	for _, k := range sorted {
		leaves = append(leaves, []byte(k), keys[k])
	}
	if len(leaves) == 0 {
		var empty chain.Digest
		d.merkleRoot = &empty
		return empty, nil
	}
	root, err := crypto.BuildMerkleRoot(leaves)
	if err != nil {
		return chain.Digest{}, err
	}
	d.merkleRoot = &root
	return root, nil
}

// VisiblePrefixKeys returns, in lexicographic order, every key sharing the
// given prefix that is visible from this delta (local writes shadow parent
// writes, local tombstones hide parent keys). Used to implement successor
// and predecessor object lookups within a single object space.
func (d *Delta) VisiblePrefixKeys(prefix []byte) []string {
	candidates := map[string]bool{}
	visited := map[*Delta]bool{}
	queue := []*Delta{d}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, k := range cur.backend.Keys() {
			if bytes.HasPrefix(k, prefix) {
				candidates[string(k)] = true
			}
		}
		for k := range cur.removed {
			if strings.HasPrefix(k, string(prefix)) {
				candidates[k] = true
			}
		}
		queue = append(queue, cur.parents...)
	}

	out := make([]string, 0, len(candidates))
	for k := range candidates {
		if _, ok := d.Get([]byte(k)); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func merkleRootOverBackend(b backend.Backend) (chain.Digest, error) {
	keys := b.Keys()
	if len(keys) == 0 {
		return chain.Digest{}, nil
	}
	leaves := make([][]byte, 0, len(keys)*2)
	for _, k := range keys {
		v, _ := b.Get(k)
		leaves = append(leaves, k, v)
	}
	return crypto.BuildMerkleRoot(leaves)
}
