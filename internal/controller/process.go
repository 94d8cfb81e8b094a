package controller

import (
	"fmt"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/crypto"
	"github.com/veltrix-chain/corechain/internal/execution"
	"github.com/veltrix-chain/corechain/internal/kerr"
	"github.com/veltrix-chain/corechain/internal/statenode"
)

// ProcessBlock applies a block to a new child of its previous block's delta
// and re-elects the head; only ancestors that fall behind the commit target
// are committed. index_to, when nonzero, overrides the default trailing-window commit
// target with an explicit height (used by fast-sync callers that want to
// commit straight to a known-irreversible height instead of waiting for
// the window to slide past it).
func (c *Controller) ProcessBlock(block chain.Block, indexTo uint64, now uint64) (chain.BlockReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if crypto.Sha256(chain.EncodeBlockSigningBytes(block)) != block.ID {
		return chain.BlockReceipt{}, kerr.Controller("malformed-block", "block id does not match its encoding")
	}
	for _, tx := range block.Transactions {
		if crypto.Sha256(chain.EncodeTransactionSigningBytes(tx)) != tx.ID {
			return chain.BlockReceipt{}, kerr.Controller("malformed-block", "transaction id does not match its encoding")
		}
	}

	if existing, ok := c.index.Get(block.ID); ok {
		mr, _ := existing.MerkleRoot()
		return chain.BlockReceipt{ID: block.ID, Height: c.heightOf(existing), StateMerkleRoot: mr}, nil
	}

	root := c.index.Root()
	parent, parentKnown := c.index.Get(block.Previous)
	if !parentKnown {
		if block.ID == root.ID() {
			mr, _ := root.MerkleRoot()
			return chain.BlockReceipt{ID: block.ID, Height: c.heightOf(root), StateMerkleRoot: mr}, nil
		}
		rootHeight, _ := c.index.Height(root.ID())
		if block.Height < rootHeight {
			return chain.BlockReceipt{}, kerr.Controller("pre-irreversibility-block", "block height precedes the committed root")
		}
		return chain.BlockReceipt{}, kerr.Controller("unknown-previous-block", "parent block is not indexed")
	}
	if !parent.Complete() {
		return chain.BlockReceipt{}, kerr.Controller("unknown-previous-block", "parent block has not finished applying")
	}

	if !parent.IsRoot() {
		parentRoot, err := parent.MerkleRoot()
		if err != nil {
			return chain.BlockReceipt{}, err
		}
		if parentRoot != block.StateMerkleRoot {
			return chain.BlockReceipt{}, kerr.Controller("state-merkle-mismatch", "block's declared parent state root does not match")
		}
	}

	parentHeight, _ := c.index.Height(parent.ID())
	if block.Height != parentHeight+1 {
		return chain.BlockReceipt{}, kerr.Controller("unexpected-height", fmt.Sprintf("expected height %d, got %d", parentHeight+1, block.Height))
	}

	parentTime := c.timestamps[parent.ID()]
	if !(parentTime < block.Timestamp && block.Timestamp <= now+5000) {
		return chain.BlockReceipt{}, kerr.Controller("timestamp-out-of-bounds", "block timestamp outside the permitted window")
	}

	permanentParent := statenode.NewPermanentNode(parent, c.index)
	child, err := permanentParent.MakeChild(block.ID, 1, block.Height)
	if err != nil {
		return chain.BlockReceipt{}, err
	}

	receipt, err := execution.ApplyBlock(c.cfg, child.Delta(), block)
	if err != nil {
		c.index.Remove(block.ID, nil)
		return chain.BlockReceipt{}, err
	}

	child.Delta().MarkComplete()
	mr, err := child.Delta().MerkleRoot()
	if err != nil {
		return chain.BlockReceipt{}, err
	}
	receipt.StateMerkleRoot = mr

	c.timestamps[block.ID] = block.Timestamp
	c.index.Finalize(child.Delta(), block.Signer, 1)

	c.maybeCommit(indexTo, block.Height)

	c.log.WithFields(map[string]any{"height": block.Height, "id": block.ID.String()}).Info("block applied")
	return receipt, nil
}

// maybeCommit advances the root to the irreversibility boundary: either the
// caller-supplied indexTo height, or the default trailing window below the
// just-applied block's height, whichever applies. Errors are logged and
// swallowed: failing to commit early never invalidates a successfully
// applied block.
func (c *Controller) maybeCommit(indexTo uint64, headHeight uint64) {
	target := indexTo
	if target == 0 {
		if headHeight <= c.window {
			return
		}
		target = headHeight - c.window
	}
	rootHeight, _ := c.index.Height(c.index.Root().ID())
	if target <= rootHeight {
		return
	}
	node, err := c.index.AtRevision(target, c.index.Head().ID())
	if err != nil {
		c.log.WithError(err).Warn("commit target not found")
		return
	}
	if _, err := c.index.Commit(node); err != nil {
		c.log.WithError(err).Warn("commit failed")
	}
}

// ProcessTransaction applies a transaction in isolation, against a
// throwaway child of head, never persisted.
func (c *Controller) ProcessTransaction(tx chain.Transaction, broadcast bool) (chain.TransactionReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if crypto.Sha256(chain.EncodeTransactionSigningBytes(tx)) != tx.ID {
		return chain.TransactionReceipt{}, kerr.Controller("malformed-transaction", "transaction id does not match its encoding")
	}
	if tx.NetworkID != c.NetworkID() {
		return chain.TransactionReceipt{}, kerr.Controller("network-id-mismatch", "transaction network id does not match this chain")
	}

	head := c.index.Head()
	ephemeral := statenode.MakeTemporaryChild(head)
	receipt, err := execution.ApplyTransaction(c.cfg, ephemeral.Delta(), tx)
	if err != nil {
		return chain.TransactionReceipt{}, err
	}
	if broadcast {
		c.log.WithField("tx", tx.ID.String()).Info("broadcasting transaction")
	}
	return receipt, nil
}

// ReadProgram runs a read-only invocation against head with a reduced
// compute budget and relaxed exit
// tolerance (a nonzero program exit is data, not an error).
func (c *Controller) ReadProgram(account chain.Account, input chain.CallInput) ([]byte, []byte, int32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg := c.cfg
	if cfg.ReadComputeLimit != 0 {
		cfg.Limits.Compute = cfg.ReadComputeLimit
	}
	return execution.ReadProgram(cfg, c.index.Head(), account, input)
}
