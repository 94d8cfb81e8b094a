package main

import (
	"encoding/hex"
	"fmt"

	"github.com/veltrix-chain/corechain/internal/chain"
)

// The engine's wire types are fixed-size byte arrays with no JSON tags, by
// design, to keep their layout bit-exact. The CLI's hex-encoded JSON DTOs
// below exist only at this boundary, converting to and from those types,
// the same way a real deployment's RPC layer would.

type operationJSON struct {
	Tag       string   `json:"tag"`
	ID        string   `json:"id"`
	Bytecode  string   `json:"bytecode,omitempty"`
	Stdin     string   `json:"stdin,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
}

type authorizationJSON struct {
	Signer    string `json:"signer"`
	Signature string `json:"signature"`
}

type transactionJSON struct {
	ID             string              `json:"id"`
	NetworkID      string              `json:"network_id"`
	Nonce          uint64              `json:"nonce"`
	ResourceLimit  uint64              `json:"resource_limit"`
	Payer          string              `json:"payer"`
	Payee          string              `json:"payee"`
	Operations     []operationJSON     `json:"operations"`
	Authorizations []authorizationJSON `json:"authorizations"`
}

type blockJSON struct {
	ID              string            `json:"id"`
	Height          uint64            `json:"height"`
	Previous        string            `json:"previous"`
	StateMerkleRoot string            `json:"state_merkle_root"`
	Timestamp       uint64            `json:"timestamp"`
	Signer          string            `json:"signer"`
	Signature       string            `json:"signature"`
	Transactions    []transactionJSON `json:"transactions"`
}

func hexDigest(s string) (chain.Digest, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(chain.Digest{}) {
		return chain.Digest{}, fmt.Errorf("expected %d-byte hex digest, got %q", len(chain.Digest{}), s)
	}
	return chain.DigestFromBytes(raw), nil
}

func hexSignature(s string) (chain.Signature, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(chain.Signature{}) {
		return chain.Signature{}, fmt.Errorf("expected %d-byte hex signature, got %q", len(chain.Signature{}), s)
	}
	var sig chain.Signature
	copy(sig[:], raw)
	return sig, nil
}

func hexAccount(s string) (chain.Account, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(chain.Account{}) {
		return chain.Account{}, fmt.Errorf("expected %d-byte hex account, got %q", len(chain.Account{}), s)
	}
	var a chain.Account
	copy(a[:], raw)
	return a, nil
}

func hexBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func (o operationJSON) toChain() (chain.Operation, error) {
	id, err := hexAccount(o.ID)
	if err != nil {
		return chain.Operation{}, err
	}
	switch o.Tag {
	case "upload_program":
		bytecode, err := hexBytes(o.Bytecode)
		if err != nil {
			return chain.Operation{}, err
		}
		return chain.Operation{Tag: chain.OpUploadProgram, ID: id, Bytecode: bytecode}, nil
	case "call_program":
		stdin, err := hexBytes(o.Stdin)
		if err != nil {
			return chain.Operation{}, err
		}
		return chain.Operation{Tag: chain.OpCallProgram, ID: id, Input: chain.CallInput{Stdin: stdin, Arguments: o.Arguments}}, nil
	default:
		return chain.Operation{}, fmt.Errorf("unknown operation tag %q", o.Tag)
	}
}

func (a authorizationJSON) toChain() (chain.Authorization, error) {
	signer, err := hexAccount(a.Signer)
	if err != nil {
		return chain.Authorization{}, err
	}
	sig, err := hexSignature(a.Signature)
	if err != nil {
		return chain.Authorization{}, err
	}
	return chain.Authorization{Signer: signer, Signature: sig}, nil
}

func (t transactionJSON) toChain() (chain.Transaction, error) {
	id, err := hexDigest(t.ID)
	if err != nil {
		return chain.Transaction{}, err
	}
	networkID, err := hexDigest(t.NetworkID)
	if err != nil {
		return chain.Transaction{}, err
	}
	payer, err := hexAccount(t.Payer)
	if err != nil {
		return chain.Transaction{}, err
	}
	payee, err := hexAccount(t.Payee)
	if err != nil {
		return chain.Transaction{}, err
	}
	ops := make([]chain.Operation, len(t.Operations))
	for i, o := range t.Operations {
		ops[i], err = o.toChain()
		if err != nil {
			return chain.Transaction{}, fmt.Errorf("operation %d: %w", i, err)
		}
	}
	auths := make([]chain.Authorization, len(t.Authorizations))
	for i, a := range t.Authorizations {
		auths[i], err = a.toChain()
		if err != nil {
			return chain.Transaction{}, fmt.Errorf("authorization %d: %w", i, err)
		}
	}
	return chain.Transaction{
		ID:             id,
		NetworkID:      networkID,
		Nonce:          t.Nonce,
		ResourceLimit:  t.ResourceLimit,
		Payer:          payer,
		Payee:          payee,
		Operations:     ops,
		Authorizations: auths,
	}, nil
}

func (b blockJSON) toChain() (chain.Block, error) {
	id, err := hexDigest(b.ID)
	if err != nil {
		return chain.Block{}, err
	}
	previous, err := hexDigest(b.Previous)
	if err != nil {
		return chain.Block{}, err
	}
	merkleRoot, err := hexDigest(b.StateMerkleRoot)
	if err != nil {
		return chain.Block{}, err
	}
	signer, err := hexAccount(b.Signer)
	if err != nil {
		return chain.Block{}, err
	}
	sig, err := hexSignature(b.Signature)
	if err != nil {
		return chain.Block{}, err
	}
	txs := make([]chain.Transaction, len(b.Transactions))
	for i, t := range b.Transactions {
		txs[i], err = t.toChain()
		if err != nil {
			return chain.Block{}, fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return chain.Block{
		ID:              id,
		Height:          b.Height,
		Previous:        previous,
		StateMerkleRoot: merkleRoot,
		Timestamp:       b.Timestamp,
		Signer:          signer,
		Signature:       sig,
		Transactions:    txs,
	}, nil
}

func eventJSON(e chain.Event) map[string]any {
	return map[string]any{
		"source":         e.Source.String(),
		"name":           e.Name,
		"data":           hex.EncodeToString(e.Data),
		"transaction_id": e.TransactionID.String(),
	}
}

func txReceiptJSON(r chain.TransactionReceipt) map[string]any {
	events := make([]map[string]any, len(r.Events))
	for i, e := range r.Events {
		events[i] = eventJSON(e)
	}
	return map[string]any{
		"id":             r.ID.String(),
		"payer":          r.Payer.String(),
		"payee":          r.Payee.String(),
		"resource_limit": r.ResourceLimit,
		"disk_used":      r.DiskUsed,
		"network_used":   r.NetworkUsed,
		"compute_used":   r.ComputeUsed,
		"reverted":       r.Reverted,
		"revert_reason":  r.RevertReason,
		"events":         events,
		"logs":           r.Logs,
	}
}

func blockReceiptJSON(r chain.BlockReceipt) map[string]any {
	txs := make([]map[string]any, len(r.Transactions))
	for i, t := range r.Transactions {
		txs[i] = txReceiptJSON(t)
	}
	events := make([]map[string]any, len(r.Events))
	for i, e := range r.Events {
		events[i] = eventJSON(e)
	}
	return map[string]any{
		"id":                r.ID.String(),
		"height":            r.Height,
		"disk_used":         r.DiskUsed,
		"disk_charged":      r.DiskCharged,
		"network_used":      r.NetworkUsed,
		"network_charged":   r.NetworkCharged,
		"compute_used":      r.ComputeUsed,
		"compute_charged":   r.ComputeCharged,
		"state_merkle_root": r.StateMerkleRoot.String(),
		"events":            events,
		"logs":              r.Logs,
		"transactions":      txs,
	}
}
