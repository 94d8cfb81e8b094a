package chain

import (
	"bytes"
	"encoding/binary"
)

// encoder builds the canonical, fixed-order byte form used for hashing and
// signing. Fixed-width fields are written directly; variable-length fields
// are u32-length-prefixed. No third-party codec in the retrieval pack is
// specified as the wire format for this engine, so this is a small,
// dependency-free encoder rather than an invented use of e.g. RLP or
// protobuf for a framing this engine never otherwise needs — see DESIGN.md.
type encoder struct {
	buf bytes.Buffer
}

func newEncoder() *encoder { return &encoder{} }

func (e *encoder) bytesRaw(b []byte) *encoder {
	e.buf.Write(b)
	return e
}

func (e *encoder) u32(v uint32) *encoder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf.Write(tmp[:])
	return e
}

func (e *encoder) u64(v uint64) *encoder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	e.buf.Write(tmp[:])
	return e
}

func (e *encoder) bytesLP(b []byte) *encoder {
	e.u32(uint32(len(b)))
	e.buf.Write(b)
	return e
}

func (e *encoder) stringLP(s string) *encoder {
	return e.bytesLP([]byte(s))
}

func (e *encoder) Bytes() []byte { return e.buf.Bytes() }

func encodeOperation(op Operation) []byte {
	e := newEncoder()
	e.buf.WriteByte(byte(op.Tag))
	switch op.Tag {
	case OpUploadProgram:
		e.bytesRaw(op.ID[:]).bytesLP(op.Bytecode)
	case OpCallProgram:
		e.bytesRaw(op.ID[:]).bytesLP(op.Input.Stdin)
		e.u32(uint32(len(op.Input.Arguments)))
		for _, a := range op.Input.Arguments {
			e.stringLP(a)
		}
	}
	return e.Bytes()
}

// EncodeTransactionSigningBytes returns the canonical bytes over which a
// transaction's id is computed and authorizations are signed. The id itself
// is intentionally excluded: it is derived from this encoding, not part of it.
func EncodeTransactionSigningBytes(tx Transaction) []byte {
	e := newEncoder()
	e.bytesRaw(tx.NetworkID[:])
	e.u64(tx.Nonce)
	e.u64(tx.ResourceLimit)
	e.bytesRaw(tx.Payer[:])
	e.bytesRaw(tx.Payee[:])
	e.u32(uint32(len(tx.Operations)))
	for _, op := range tx.Operations {
		e.bytesLP(encodeOperation(op))
	}
	return e.Bytes()
}

// EncodeBlockSigningBytes returns the canonical bytes over which a block's
// id is computed and the signer's signature is produced. The signature
// field itself is excluded.
func EncodeBlockSigningBytes(b Block) []byte {
	e := newEncoder()
	e.u64(b.Height)
	e.bytesRaw(b.Previous[:])
	e.bytesRaw(b.StateMerkleRoot[:])
	e.u64(b.Timestamp)
	e.bytesRaw(b.Signer[:])
	e.u32(uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		e.bytesRaw(tx.ID[:])
	}
	return e.Bytes()
}
