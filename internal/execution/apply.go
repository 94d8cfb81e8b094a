package execution

import (
	"encoding/binary"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/crypto"
	"github.com/veltrix-chain/corechain/internal/host"
	"github.com/veltrix-chain/corechain/internal/kerr"
	"github.com/veltrix-chain/corechain/internal/meter"
	"github.com/veltrix-chain/corechain/internal/statedelta"
	"github.com/veltrix-chain/corechain/internal/statenode"
)

// dispatchCategory classifies err for the operation-dispatch loop, with one
// override: a compute-bandwidth trip is downgraded from its structural
// Controller category to a Reversion at this boundary, matching the VM's
// cooperative-cancellation contract (the running program, not the chain,
// is what ran out of budget).
func dispatchCategory(err error) kerr.Category {
	if kerr.CodeOf(err) == "compute-bandwidth-limit-exceeded" {
		return kerr.CategoryReversion
	}
	return kerr.CategoryOf(err)
}

func readNonce(d *statedelta.Delta, account chain.Account) uint64 {
	space := statenode.SystemSpace(statenode.SpaceTransactionNonce)
	v, ok := d.Get(space.Key(account[:]))
	if !ok || len(v) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(v)
}

func writeNonce(d *statedelta.Delta, account chain.Account, nonce uint64) error {
	space := statenode.SystemSpace(statenode.SpaceTransactionNonce)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, nonce)
	_, err := d.Put(space.Key(account[:]), buf)
	return err
}

func readAccountResources(d *statedelta.Delta, account chain.Account, fallback uint64) uint64 {
	space := statenode.SystemSpace(statenode.SpaceAccountResources)
	v, ok := d.Get(space.Key(account[:]))
	if !ok || len(v) != 8 {
		return fallback
	}
	return binary.LittleEndian.Uint64(v)
}

func writeAccountResources(d *statedelta.Delta, account chain.Account, value uint64) error {
	space := statenode.SystemSpace(statenode.SpaceAccountResources)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	_, err := d.Put(space.Key(account[:]), buf)
	return err
}

// ApplyTransaction applies a single transaction's operations. base is
// the running per-block state node; the operation-dispatch portion runs
// against a temporary child that is squashed back into base only if every
// operation succeeds. A Reversion-category failure leaves the child
// unsquashed, so only the nonce write to base remains; a Controller-category
// failure aborts the whole transaction with an error.
func ApplyTransaction(cfg Config, base *statedelta.Delta, tx chain.Transaction) (chain.TransactionReceipt, error) {
	ctx := NewContext(cfg, host.IntentTransactionApplication, base)
	ctx.tx = &tx

	nonceAccount := tx.Payee
	if nonceAccount.IsZero() {
		nonceAccount = tx.Payer
	}

	available := readAccountResources(base, tx.Payer, cfg.DefaultAccountResources)
	if available < tx.ResourceLimit {
		return chain.TransactionReceipt{}, kerr.Controller("insufficient-resources", "payer resource allowance below transaction limit")
	}

	session := meter.NewSession(tx.Payer, tx.ResourceLimit)
	ctx.meter.AttachSession(session)

	ok, err := ctx.CheckAuthority(tx.Payer)
	if err != nil {
		return chain.TransactionReceipt{}, err
	}
	if !ok {
		return chain.TransactionReceipt{}, kerr.Controller("authorization-failure", "payer did not authorize the transaction")
	}
	if !tx.Payee.IsZero() && tx.Payee != tx.Payer {
		ok, err := ctx.CheckAuthority(tx.Payee)
		if err != nil {
			return chain.TransactionReceipt{}, err
		}
		if !ok {
			return chain.TransactionReceipt{}, kerr.Controller("authorization-failure", "payee did not authorize the transaction")
		}
	}

	currentNonce := readNonce(base, nonceAccount)
	if currentNonce+1 != tx.Nonce {
		return chain.TransactionReceipt{}, kerr.Controller("invalid-nonce", "transaction nonce does not follow account nonce")
	}
	if err := writeNonce(base, nonceAccount, tx.Nonce); err != nil {
		return chain.TransactionReceipt{}, err
	}

	sizeBytes := int64(len(chain.EncodeTransactionSigningBytes(tx)))
	if err := ctx.meter.UseNetworkBandwidth(sizeBytes); err != nil {
		return chain.TransactionReceipt{}, err
	}

	temp := statenode.MakeTemporaryChild(base)
	ctx.SetDelta(temp.Delta())

	reverted := false
	var revertReason string
	for _, op := range tx.Operations {
		var dispatchErr error
		switch op.Tag {
		case chain.OpUploadProgram:
			dispatchErr = ctx.dispatchUploadProgram(op.ID, op.Bytecode)
		case chain.OpCallProgram:
			dispatchErr = ctx.dispatchCallProgram(op.ID, op.Input)
		default:
			dispatchErr = kerr.Reversion("invalid-argument", "unknown operation tag")
		}
		if dispatchErr != nil {
			if dispatchCategory(dispatchErr) == kerr.CategoryReversion {
				reverted = true
				revertReason = dispatchErr.Error()
				ctx.chron.log("transaction %s reverted: %s", tx.ID, revertReason)
				break
			}
			return chain.TransactionReceipt{}, dispatchErr
		}
	}

	if !reverted {
		if err := temp.Squash(); err != nil {
			return chain.TransactionReceipt{}, err
		}
	}

	diskUsed, networkUsed, computeUsed := ctx.meter.Used()
	session.Destroy()

	spent := session.Spent()
	if spent > available {
		spent = available
	}
	if err := writeAccountResources(base, tx.Payer, available-spent); err != nil {
		return chain.TransactionReceipt{}, err
	}

	events := ctx.chron.events
	if reverted {
		events = nil
	}
	return chain.TransactionReceipt{
		ID:            tx.ID,
		Payer:         tx.Payer,
		Payee:         tx.Payee,
		ResourceLimit: tx.ResourceLimit,
		DiskUsed:      diskUsed,
		NetworkUsed:   networkUsed,
		ComputeUsed:   computeUsed,
		Reverted:      reverted,
		RevertReason:  revertReason,
		Events:        events,
		Logs:          ctx.chron.logs,
	}, nil
}

// ApplyBlock applies every transaction in a block in order. delta is the new
// child node the controller has already created for this block; it is not
// finalized or committed here, only filled with transaction writes.
func ApplyBlock(cfg Config, delta *statedelta.Delta, block chain.Block) (chain.BlockReceipt, error) {
	genesisSpace := statenode.SystemSpace(statenode.SpaceMetadata)
	genesisKey, ok := delta.Get(genesisSpace.Key(statenode.MetadataGenesisKey))
	if !ok {
		return chain.BlockReceipt{}, kerr.Controller("invalid-signature", "genesis public key is not present in state")
	}
	if !equalBytes(block.Signer.Payload(), genesisKey) {
		return chain.BlockReceipt{}, kerr.Controller("invalid-signature", "block signer does not match the genesis key")
	}
	if !crypto.Verify(genesisKey, block.ID, block.Signature) {
		return chain.BlockReceipt{}, kerr.Controller("invalid-signature", "block signature does not verify against the genesis key")
	}

	receipts := make([]chain.TransactionReceipt, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		rcpt, err := ApplyTransaction(cfg, delta, tx)
		if err != nil {
			if dispatchCategory(err) != kerr.CategoryReversion {
				return chain.BlockReceipt{}, err
			}
			rcpt = chain.TransactionReceipt{
				ID:            tx.ID,
				Payer:         tx.Payer,
				Payee:         tx.Payee,
				ResourceLimit: tx.ResourceLimit,
				Reverted:      true,
				RevertReason:  err.Error(),
			}
		}
		receipts = append(receipts, rcpt)
	}

	var diskUsed, networkUsed, computeUsed uint64
	var events []chain.Event
	for _, r := range receipts {
		diskUsed += r.DiskUsed
		networkUsed += r.NetworkUsed
		computeUsed += r.ComputeUsed
		events = append(events, r.Events...)
	}

	return chain.BlockReceipt{
		ID:             block.ID,
		Height:         block.Height,
		DiskUsed:       diskUsed,
		DiskCharged:    diskUsed * cfg.Costs.Disk,
		NetworkUsed:    networkUsed,
		NetworkCharged: networkUsed * cfg.Costs.Network,
		ComputeUsed:    computeUsed,
		ComputeCharged: computeUsed * cfg.Costs.Compute,
		Events:         events,
		Transactions:   receipts,
	}, nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
