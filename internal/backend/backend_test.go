package backend

import (
	"testing"

	"github.com/veltrix-chain/corechain/internal/chain"
)

func TestMemoryBackendPutGetRemove(t *testing.T) {
	b := NewMemoryBackend()
	if _, ok := b.Get([]byte("a")); ok {
		t.Fatal("Get on an empty backend must report absence")
	}

	b.Put([]byte("a"), []byte("1"))
	v, ok := b.Get([]byte("a"))
	if !ok || string(v) != "1" {
		t.Fatalf("Get after Put = %q, %v, want 1, true", v, ok)
	}

	b.Remove([]byte("a"))
	if _, ok := b.Get([]byte("a")); ok {
		t.Fatal("Get after Remove must report absence")
	}
}

func TestMemoryBackendGetReturnsACopy(t *testing.T) {
	b := NewMemoryBackend()
	b.Put([]byte("a"), []byte("1"))
	v, _ := b.Get([]byte("a"))
	v[0] = 'z'
	v2, _ := b.Get([]byte("a"))
	if string(v2) != "1" {
		t.Fatalf("mutating a Get result must not affect the backend, got %q", v2)
	}
}

func TestMemoryBackendPutReturnsSizeDelta(t *testing.T) {
	b := NewMemoryBackend()
	delta := b.Put([]byte("ab"), []byte("1234"))
	if delta != int64(len("ab")+len("1234")) {
		t.Fatalf("Put delta for a new key = %d, want %d", delta, len("ab")+len("1234"))
	}

	delta2 := b.Put([]byte("ab"), []byte("12"))
	if delta2 != int64(len("12")-len("1234")) {
		t.Fatalf("Put delta for a shrinking value = %d, want %d", delta2, len("12")-len("1234"))
	}
}

func TestMemoryBackendRemoveReturnsNegativeSizeDelta(t *testing.T) {
	b := NewMemoryBackend()
	b.Put([]byte("ab"), []byte("1234"))
	delta := b.Remove([]byte("ab"))
	if delta != -int64(len("ab")+len("1234")) {
		t.Fatalf("Remove delta = %d, want %d", delta, -int64(len("ab")+len("1234")))
	}
	if delta := b.Remove([]byte("ab")); delta != 0 {
		t.Fatalf("Remove of an already-absent key = %d, want 0", delta)
	}
}

func TestMemoryBackendSizeAndClear(t *testing.T) {
	b := NewMemoryBackend()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	if b.Size() != 2 {
		t.Fatalf("Size = %d, want 2", b.Size())
	}
	b.Clear()
	if b.Size() != 0 {
		t.Fatalf("Size after Clear = %d, want 0", b.Size())
	}
}

func TestMemoryBackendKeysAreSortedLexicographically(t *testing.T) {
	b := NewMemoryBackend()
	b.Put([]byte("b"), []byte("2"))
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("c"), []byte("3"))

	keys := b.Keys()
	if len(keys) != 3 || string(keys[0]) != "a" || string(keys[1]) != "b" || string(keys[2]) != "c" {
		t.Fatalf("Keys() = %v, want [a b c]", keys)
	}
}

func TestMemoryBackendCloneIsIndependent(t *testing.T) {
	b := NewMemoryBackend()
	b.Put([]byte("a"), []byte("1"))
	b.StoreMetadata(5, chain.Digest{1}, chain.Digest{2})

	clone := b.Clone()
	b.Put([]byte("a"), []byte("2"))
	b.Put([]byte("b"), []byte("3"))

	v, ok := clone.Get([]byte("a"))
	if !ok || string(v) != "1" {
		t.Fatalf("clone's value for a = %q, %v, want 1, true (clone must not see later writes)", v, ok)
	}
	if _, ok := clone.Get([]byte("b")); ok {
		t.Fatal("clone must not see keys added to the original after cloning")
	}
	if clone.Revision() != 5 || clone.ID() != (chain.Digest{1}) || clone.MerkleRoot() != (chain.Digest{2}) {
		t.Fatal("Clone must carry over the original's stored metadata")
	}
}

func TestMemoryBackendStoreMetadata(t *testing.T) {
	b := NewMemoryBackend()
	id := chain.Digest{0xaa}
	root := chain.Digest{0xbb}
	b.StoreMetadata(42, id, root)

	if b.Revision() != 42 {
		t.Fatalf("Revision = %d, want 42", b.Revision())
	}
	if b.ID() != id {
		t.Fatalf("ID = %v, want %v", b.ID(), id)
	}
	if b.MerkleRoot() != root {
		t.Fatalf("MerkleRoot = %v, want %v", b.MerkleRoot(), root)
	}
}
