// Package chain defines the wire-level data model: accounts, digests,
// blocks, transactions, operations and receipts. Field layout is fixed
// bit-exactly so that signatures are deterministic.
package chain

import "encoding/hex"

// AccountType tags the kind of account an Account identifies.
type AccountType byte

const (
	AccountUser AccountType = iota
	AccountProgram
	AccountSystemProgram
)

// Account is a 33-byte tagged identifier: one type-tag byte followed by a
// 32-byte payload (an Ed25519 public key for user/program accounts, or a
// zero-padded literal name for system programs).
type Account [33]byte

func NewAccount(t AccountType, payload []byte) Account {
	var a Account
	a[0] = byte(t)
	copy(a[1:], payload)
	return a
}

// SystemProgram builds a system-program account from a short literal name.
func SystemProgram(name string) Account {
	return NewAccount(AccountSystemProgram, []byte(name))
}

func (a Account) Type() AccountType { return AccountType(a[0]) }
func (a Account) Payload() []byte   { return a[1:] }
func (a Account) IsZero() bool      { return a == Account{} }

func (a Account) String() string { return hex.EncodeToString(a[:]) }

// Digest is a 32-byte SHA-256 output.
type Digest [32]byte

func (d Digest) String() string  { return hex.EncodeToString(d[:]) }
func (d Digest) IsZero() bool    { return d == Digest{} }
func DigestFromBytes(b []byte) Digest {
	var d Digest
	copy(d[:], b)
	return d
}

// Signature is a 64-byte Ed25519 signature.
type Signature [64]byte

// Authorization pairs a signer with their signature over the transaction id.
type Authorization struct {
	Signer    Account
	Signature Signature
}

// OperationTag distinguishes the two operation kinds the engine dispatches.
type OperationTag byte

const (
	OpUploadProgram OperationTag = iota
	OpCallProgram
)

// CallInput is the argument bundle passed to call_program.
type CallInput struct {
	Stdin     []byte
	Arguments []string
}

// Operation is a tagged sum of upload_program{id, bytecode} and
// call_program{id, input}.
type Operation struct {
	Tag       OperationTag
	ID        Account
	Bytecode  []byte    // valid when Tag == OpUploadProgram
	Input     CallInput // valid when Tag == OpCallProgram
}

// Transaction is one signed unit of work within a block.
type Transaction struct {
	ID             Digest
	NetworkID      Digest
	Nonce          uint64
	ResourceLimit  uint64
	Payer          Account
	Payee          Account
	Operations     []Operation
	Authorizations []Authorization
}

// Block is an ordered list of transactions plus consensus metadata.
type Block struct {
	ID               Digest
	Height           uint64
	Previous         Digest
	StateMerkleRoot  Digest
	Timestamp        uint64 // ms since epoch
	Signer           Account
	Signature        Signature
	Transactions     []Transaction
}

// Event is a log-like structured emission attached to a receipt.
type Event struct {
	Source Account
	Name   string
	Data   []byte
	// TransactionID is the zero digest for block-level events.
	TransactionID Digest
}

// TransactionReceipt is the result of applying one transaction.
type TransactionReceipt struct {
	ID               Digest
	Payer            Account
	Payee            Account
	ResourceLimit    uint64
	DiskUsed         uint64
	NetworkUsed      uint64
	ComputeUsed      uint64
	Reverted         bool
	RevertReason     string
	Events           []Event
	Logs             []string
}

// BlockReceipt is the result of applying one block.
type BlockReceipt struct {
	ID              Digest
	Height          uint64
	DiskUsed        uint64
	DiskCharged     uint64
	NetworkUsed     uint64
	NetworkCharged  uint64
	ComputeUsed     uint64
	ComputeCharged  uint64
	StateMerkleRoot Digest
	Events          []Event
	Logs            []string
	Transactions    []TransactionReceipt
}
