package chain

import "testing"

func TestEncodeTransactionSigningBytesDeterministic(t *testing.T) {
	tx := Transaction{
		NetworkID:     Digest{1},
		Nonce:         7,
		ResourceLimit: 1000,
		Payer:         NewAccount(AccountUser, []byte("payer")),
		Payee:         NewAccount(AccountUser, []byte("payee")),
		Operations: []Operation{
			{Tag: OpCallProgram, ID: SystemProgram("token"), Input: CallInput{Stdin: []byte("x"), Arguments: []string{"transfer", "1"}}},
		},
	}
	a := EncodeTransactionSigningBytes(tx)
	b := EncodeTransactionSigningBytes(tx)
	if string(a) != string(b) {
		t.Fatal("encoding is not deterministic for identical input")
	}

	tx2 := tx
	tx2.Nonce = 8
	if string(EncodeTransactionSigningBytes(tx2)) == string(a) {
		t.Fatal("changing the nonce must change the encoding")
	}
}

func TestEncodeTransactionSigningBytesExcludesID(t *testing.T) {
	tx := Transaction{NetworkID: Digest{2}, Nonce: 1}
	before := EncodeTransactionSigningBytes(tx)
	tx.ID = Digest{9, 9, 9}
	after := EncodeTransactionSigningBytes(tx)
	if string(before) != string(after) {
		t.Fatal("the id field must not affect its own signing bytes")
	}
}

func TestEncodeBlockSigningBytesExcludesSignature(t *testing.T) {
	b := Block{Height: 3, Previous: Digest{1}, StateMerkleRoot: Digest{2}, Timestamp: 100, Signer: SystemProgram("x")}
	before := EncodeBlockSigningBytes(b)
	b.Signature = Signature{1, 2, 3}
	after := EncodeBlockSigningBytes(b)
	if string(before) != string(after) {
		t.Fatal("the signature field must not affect the block's signing bytes")
	}
}

func TestAccountRoundtrip(t *testing.T) {
	a := NewAccount(AccountProgram, []byte("some-key-material-32-bytes-long"))
	if a.Type() != AccountProgram {
		t.Fatalf("Type() = %v, want AccountProgram", a.Type())
	}
	if a.IsZero() {
		t.Fatal("a freshly built account should not be zero")
	}
	var zero Account
	if !zero.IsZero() {
		t.Fatal("the zero value must report IsZero")
	}
}
