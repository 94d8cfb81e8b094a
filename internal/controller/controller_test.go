package controller

import (
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/crypto"
	"github.com/veltrix-chain/corechain/internal/execution"
	"github.com/veltrix-chain/corechain/internal/meter"
	"github.com/veltrix-chain/corechain/internal/programs"
	"github.com/veltrix-chain/corechain/internal/statenode"
	"github.com/veltrix-chain/corechain/internal/vm"
	"github.com/wasmerio/wasmer-go/wasmer"
)

func mustWat2WasmForTest(t *testing.T, wat string) []byte {
	t.Helper()
	bytecode, err := wasmer.Wat2Wasm(wat)
	if err != nil {
		t.Fatalf("Wat2Wasm: %v", err)
	}
	return bytecode
}

func genesisEntries(pub []byte) []GenesisEntry {
	return []GenesisEntry{
		{Space: statenode.SystemSpace(statenode.SpaceMetadata), Key: statenode.MetadataGenesisKey, Value: pub},
	}
}

func testExecConfig(tokenOwner chain.Account) execution.Config {
	registry := programs.NewRegistry()
	tokenID := chain.SystemProgram("token")
	registry.Register(tokenID, programs.NewTokenProgram(tokenID, tokenOwner))
	return execution.Config{
		MaxCallDepth:            16,
		Limits:                  meter.Limits{Disk: 1 << 20, Network: 1 << 20, Compute: 1 << 20},
		Costs:                   meter.Costs{Disk: 1, Network: 1, Compute: 1},
		Registry:                registry,
		Runner:                  vm.New(),
		DefaultAccountResources: 1 << 30,
	}
}

func signedBlock(priv ed25519.PrivateKey, block chain.Block) chain.Block {
	block.ID = crypto.Sha256(chain.EncodeBlockSigningBytes(block))
	block.Signature = crypto.Sign(priv, block.ID)
	return block
}

func signedTx(priv ed25519.PrivateKey, payer chain.Account, nonce uint64, ops []chain.Operation, networkID chain.Digest) chain.Transaction {
	tx := chain.Transaction{NetworkID: networkID, Nonce: nonce, ResourceLimit: 10000, Payer: payer, Operations: ops}
	tx.ID = crypto.Sha256(chain.EncodeTransactionSigningBytes(tx))
	tx.Authorizations = []chain.Authorization{{Signer: payer, Signature: crypto.Sign(priv, tx.ID)}}
	return tx
}

func TestOpenRejectsGenesisWithoutPublicKey(t *testing.T) {
	cfg := testExecConfig(chain.Account{})
	if _, err := Open("", nil, "fifo", false, cfg); err == nil {
		t.Fatal("expected Open to reject genesis data missing the genesis public key")
	}
}

func TestOpenRejectsUnknownForkAlgorithm(t *testing.T) {
	pub, _, _ := crypto.GenerateKey()
	cfg := testExecConfig(chain.NewAccount(chain.AccountUser, pub))
	if _, err := Open("", genesisEntries(pub), "longest-chain", false, cfg); err == nil {
		t.Fatal("expected Open to reject an unsupported fork choice algorithm")
	}
}

func TestOpenRejectsConflictingGenesisEntries(t *testing.T) {
	pub, _, _ := crypto.GenerateKey()
	cfg := testExecConfig(chain.NewAccount(chain.AccountUser, pub))
	entries := append(genesisEntries(pub), GenesisEntry{
		Space: statenode.SystemSpace(statenode.SpaceMetadata),
		Key:   statenode.MetadataGenesisKey,
		Value: pub,
	})
	if _, err := Open("", entries, "fifo", false, cfg); err == nil {
		t.Fatal("expected Open to reject a genesis entry that conflicts with one already seeded")
	}
}

func TestProcessBlockAppliesEmptyBlockAndAdvancesHead(t *testing.T) {
	pub, priv, _ := crypto.GenerateKey()
	signer := chain.NewAccount(chain.AccountUser, pub)
	cfg := testExecConfig(signer)

	c, err := Open("", genesisEntries(pub), "fifo", false, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	block := signedBlock(priv, chain.Block{Height: 1, Timestamp: 1, Signer: signer})

	receipt, err := c.ProcessBlock(block, 0, 1000)
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if len(receipt.Transactions) != 0 {
		t.Fatal("empty block must have no transaction receipts")
	}
	if c.Head().Height != 1 {
		t.Fatalf("head height = %d, want 1", c.Head().Height)
	}
	if c.Head().ID != block.ID {
		t.Fatal("head must advance to the newly applied block")
	}
}

func TestProcessBlockRejectsWrongHeight(t *testing.T) {
	pub, priv, _ := crypto.GenerateKey()
	signer := chain.NewAccount(chain.AccountUser, pub)
	cfg := testExecConfig(signer)

	c, err := Open("", genesisEntries(pub), "fifo", false, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	block := signedBlock(priv, chain.Block{Height: 5, Signer: signer})

	if _, err := c.ProcessBlock(block, 0, 1000); err == nil {
		t.Fatal("expected an unexpected-height controller error")
	}
}

func TestProcessTransactionRejectsNetworkIDMismatch(t *testing.T) {
	pub, priv, _ := crypto.GenerateKey()
	signer := chain.NewAccount(chain.AccountUser, pub)
	cfg := testExecConfig(signer)

	c, err := Open("", genesisEntries(pub), "fifo", false, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tx := signedTx(priv, signer, 1, nil, chain.Digest{0xff})

	if _, err := c.ProcessTransaction(tx, false); err == nil {
		t.Fatal("expected a network-id-mismatch controller error")
	}
}

func mintOp(to chain.Account, amount uint64) chain.Operation {
	buf := make([]byte, 41)
	copy(buf[:33], to[:])
	binary.BigEndian.PutUint64(buf[33:41], amount)
	return chain.Operation{Tag: chain.OpCallProgram, ID: chain.SystemProgram("token"), Input: chain.CallInput{Arguments: []string{"mint"}, Stdin: buf}}
}

func transferOp(from, to chain.Account, amount uint64) chain.Operation {
	buf := make([]byte, 74)
	copy(buf[:33], from[:])
	copy(buf[33:66], to[:])
	binary.BigEndian.PutUint64(buf[66:74], amount)
	return chain.Operation{Tag: chain.OpCallProgram, ID: chain.SystemProgram("token"), Input: chain.CallInput{Arguments: []string{"transfer"}, Stdin: buf}}
}

func TestProcessBlockMintThenTransferViaNativeToken(t *testing.T) {
	pub, priv, _ := crypto.GenerateKey()
	owner := chain.NewAccount(chain.AccountUser, pub)
	alicePub, alicePriv, _ := crypto.GenerateKey()
	alice := chain.NewAccount(chain.AccountUser, alicePub)
	bobPub, _, _ := crypto.GenerateKey()
	bob := chain.NewAccount(chain.AccountUser, bobPub)

	cfg := testExecConfig(owner)
	c, err := Open("", genesisEntries(pub), "fifo", false, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	networkID := c.NetworkID()

	mintTx := signedTx(priv, owner, 1, []chain.Operation{mintOp(alice, 100)}, networkID)
	block1 := signedBlock(priv, chain.Block{Height: 1, Timestamp: 1, Signer: owner, Transactions: []chain.Transaction{mintTx}})
	r1, err := c.ProcessBlock(block1, 0, 1000)
	if err != nil {
		t.Fatalf("ProcessBlock mint: %v", err)
	}
	if r1.Transactions[0].Reverted {
		t.Fatalf("mint reverted: %s", r1.Transactions[0].RevertReason)
	}

	transferTx := signedTx(alicePriv, alice, 1, []chain.Operation{transferOp(alice, bob, 40)}, networkID)
	block2 := signedBlock(priv, chain.Block{Height: 2, Previous: block1.ID, StateMerkleRoot: r1.StateMerkleRoot, Timestamp: 2, Signer: owner, Transactions: []chain.Transaction{transferTx}})
	r2, err := c.ProcessBlock(block2, 0, 2000)
	if err != nil {
		t.Fatalf("ProcessBlock transfer: %v", err)
	}
	if r2.Transactions[0].Reverted {
		t.Fatalf("transfer reverted: %s", r2.Transactions[0].RevertReason)
	}

	stdout, _, _, err := c.ReadProgram(chain.SystemProgram("token"), chain.CallInput{Arguments: []string{"balance_of"}, Stdin: alice[:]})
	if err != nil {
		t.Fatalf("ReadProgram balance_of alice: %v", err)
	}
	if binary.BigEndian.Uint64(stdout) != 60 {
		t.Fatalf("alice balance = %d, want 60", binary.BigEndian.Uint64(stdout))
	}

	stdout2, _, _, err := c.ReadProgram(chain.SystemProgram("token"), chain.CallInput{Arguments: []string{"balance_of"}, Stdin: bob[:]})
	if err != nil {
		t.Fatalf("ReadProgram balance_of bob: %v", err)
	}
	if binary.BigEndian.Uint64(stdout2) != 40 {
		t.Fatalf("bob balance = %d, want 40", binary.BigEndian.Uint64(stdout2))
	}
}

func TestProcessBlockReversionStillAdvancesNonce(t *testing.T) {
	pub, priv, _ := crypto.GenerateKey()
	owner := chain.NewAccount(chain.AccountUser, pub)
	alicePub, _, _ := crypto.GenerateKey()
	alice := chain.NewAccount(chain.AccountUser, alicePub)

	cfg := testExecConfig(owner)
	c, err := Open("", genesisEntries(pub), "fifo", false, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	networkID := c.NetworkID()

	// owner has no balance; transferring from it reverts inside the token
	// program, but the transaction's nonce bookkeeping still commits.
	badTransfer := signedTx(priv, owner, 1, []chain.Operation{transferOp(owner, alice, 1)}, networkID)
	block := signedBlock(priv, chain.Block{Height: 1, Timestamp: 1, Signer: owner, Transactions: []chain.Transaction{badTransfer}})

	receipt, err := c.ProcessBlock(block, 0, 1000)
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if !receipt.Transactions[0].Reverted {
		t.Fatal("expected the transfer to revert for insufficient balance")
	}
	if c.AccountNonce(owner) != 1 {
		t.Fatalf("owner nonce after a reverted transaction = %d, want 1", c.AccountNonce(owner))
	}
}

func TestProcessBlockWasmUploadAndReadProgram(t *testing.T) {
	pub, priv, _ := crypto.GenerateKey()
	owner := chain.NewAccount(chain.AccountUser, pub)
	progID := chain.NewAccount(chain.AccountProgram, pub)

	cfg := testExecConfig(owner)
	c, err := Open("", genesisEntries(pub), "fifo", false, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	networkID := c.NetworkID()

	bytecode := mustWat2WasmForTest(t, `(module
		(import "wasi_snapshot_preview1" "fd_write" (func $fd_write (param i32 i32 i32 i32) (result i32)))
		(memory (export "memory") 1)
		(data (i32.const 0) "\08\00\00\00\02\00\00\00")
		(data (i32.const 8) "ok")
		(func (export "_start")
			(drop (call $fd_write (i32.const 1) (i32.const 0) (i32.const 1) (i32.const 20)))))`)

	upload := chain.Operation{Tag: chain.OpUploadProgram, ID: progID, Bytecode: bytecode}
	tx := signedTx(priv, owner, 1, []chain.Operation{upload}, networkID)
	block := signedBlock(priv, chain.Block{Height: 1, Timestamp: 1, Signer: owner, Transactions: []chain.Transaction{tx}})

	receipt, err := c.ProcessBlock(block, 0, 1000)
	if err != nil {
		t.Fatalf("ProcessBlock: %v", err)
	}
	if receipt.Transactions[0].Reverted {
		t.Fatalf("upload reverted: %s", receipt.Transactions[0].RevertReason)
	}

	stdout, _, exitCode, err := c.ReadProgram(progID, chain.CallInput{})
	if err != nil {
		t.Fatalf("ReadProgram: %v", err)
	}
	if exitCode != 0 {
		t.Fatalf("exit code = %d, want 0", exitCode)
	}
	if string(stdout) != "ok" {
		t.Fatalf("stdout = %q, want ok", stdout)
	}
}
