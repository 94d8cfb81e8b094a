// Package controller is the top-level façade: it owns the backend, the
// delta index and head pointer, and drives block/transaction application
// through the execution package. It is the only component
// permitted to mutate the DAG; read-only queries take the reader side of
// an internal lock, process(...) takes the writer side.
package controller

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/crypto"
	"github.com/veltrix-chain/corechain/internal/execution"
	"github.com/veltrix-chain/corechain/internal/kerr"
	"github.com/veltrix-chain/corechain/internal/meter"
	"github.com/veltrix-chain/corechain/internal/statedelta"
	"github.com/veltrix-chain/corechain/internal/statenode"
)

// IrreversibilityWindow is the depth below head at which nodes are
// committed to the root (glossary reference value: 60).
const IrreversibilityWindow = 60

// networkIDLiteral is the well-known string whose SHA-256 identifies this
// chain's network.
const networkIDLiteral = "corechain-mainnet"

// GenesisEntry is one (object_space, key, value) triple from the genesis
// data file.
type GenesisEntry struct {
	Space statenode.ObjectSpace
	Key   []byte
	Value []byte
}

// HeadInfo summarizes the currently elected head for read-only callers.
type HeadInfo struct {
	ID         chain.Digest
	Height     uint64
	MerkleRoot chain.Digest
}

// Controller is the chain's single entry point: open it once, then drive
// it with ProcessBlock/ProcessTransaction/ReadProgram.
type Controller struct {
	mu     sync.RWMutex
	index  *statenode.Index
	cfg    execution.Config
	window uint64
	log    *logrus.Entry

	// timestamps records each applied block's declared timestamp, keyed by
	// its delta id, so the next block's timestamp-bounds check has
	// something to compare against. The genesis root has no entry, so its
	// zero value (timestamp 0) is the implicit lower bound for height 1.
	timestamps map[chain.Digest]uint64
}

// Open constructs a backend, applies the genesis triples into the root
// (refusing any pre-existing object), asserts the genesis public key is
// present, and logs the elected head. path is accepted for interface
// parity with a persistent backend; the only Backend this engine ships,
// MemoryBackend, ignores it (see DESIGN.md). reset is honored the same
// way: there is nothing on disk to reuse, so every Open starts fresh
// regardless, and reset only changes what gets logged.
func Open(path string, genesisData []GenesisEntry, forkAlgorithm string, reset bool, cfg execution.Config) (*Controller, error) {
	log := logrus.WithFields(logrus.Fields{"component": "controller", "path": path})

	idx := statenode.NewIndex()
	switch forkAlgorithm {
	case "", "fifo":
		idx.SetForkComparator(statenode.FIFOComparator)
	default:
		return nil, kerr.Controller("invalid-argument", fmt.Sprintf("unsupported fork algorithm %q", forkAlgorithm))
	}

	genesisInit := func(root *statedelta.Delta) error {
		for _, entry := range genesisData {
			compound := entry.Space.Key(entry.Key)
			if _, exists := root.Get(compound); exists {
				return kerr.Controller("genesis-conflict", "genesis data redefines an existing object")
			}
			if _, err := root.Put(compound, entry.Value); err != nil {
				return err
			}
		}
		metadataSpace := statenode.SystemSpace(statenode.SpaceMetadata)
		if _, ok := root.Get(metadataSpace.Key(statenode.MetadataGenesisKey)); !ok {
			return kerr.Controller("invalid-signature", "genesis data does not define the genesis public key")
		}
		return nil
	}

	if err := idx.Open(newGenesisBackend(), genesisInit); err != nil {
		return nil, err
	}

	c := &Controller{index: idx, cfg: cfg, window: IrreversibilityWindow, log: log, timestamps: map[chain.Digest]uint64{}}
	head := idx.Head()
	log.WithFields(logrus.Fields{"reset": reset, "head": head.ID().String()}).Info("controller opened")
	return c, nil
}

// Close releases nothing today (the in-memory backend owns no external
// resource), but is kept as a symmetric bookend to Open.
func (c *Controller) Close() {
	c.log.Info("controller closed")
}

// Head returns the currently elected head.
func (c *Controller) Head() HeadInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	head := c.index.Head()
	mr, _ := head.MerkleRoot()
	return HeadInfo{ID: head.ID(), Height: c.heightOf(head), MerkleRoot: mr}
}

// ResourceLimits returns the configured per-dimension limits.
func (c *Controller) ResourceLimits() meter.Limits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Limits
}

// AccountResources returns account's resource-credit allowance against
// head, falling back to the configured default when genesis never seeded
// one.
func (c *Controller) AccountResources(account chain.Account) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return readAccountResourcesPublic(c.index.Head(), account, c.cfg.DefaultAccountResources)
}

// AccountNonce returns account's current nonce against head.
func (c *Controller) AccountNonce(account chain.Account) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return readNoncePublic(c.index.Head(), account)
}

// NetworkID is the SHA-256 of this chain's well-known network literal.
func (c *Controller) NetworkID() chain.Digest {
	return crypto.Sha256([]byte(networkIDLiteral))
}

func (c *Controller) heightOf(d *statedelta.Delta) uint64 {
	h, _ := c.index.Height(d.ID())
	return h
}
