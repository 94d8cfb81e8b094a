package vm

import (
	"testing"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/host"
)

// fakeHost is a minimal in-memory host.Host, local to this package so the
// runner can be exercised without pulling in the execution context.
type fakeHost struct {
	arguments []string
	objects   map[uint32]map[string][]byte
}

func newFakeHost() *fakeHost {
	return &fakeHost{objects: map[uint32]map[string][]byte{}}
}

func (h *fakeHost) Arguments() []string                     { return h.arguments }
func (h *fakeHost) Write(host.Fd, []byte) error              { return nil }
func (h *fakeHost) Read([]byte) (int, error)                 { return 0, nil }
func (h *fakeHost) GetObject(spaceID uint32, key []byte) ([]byte, bool) {
	v, ok := h.objects[spaceID][string(key)]
	return v, ok
}
func (h *fakeHost) GetNextObject(uint32, []byte) ([]byte, []byte, bool) { return nil, nil, false }
func (h *fakeHost) GetPrevObject(uint32, []byte) ([]byte, []byte, bool) { return nil, nil, false }
func (h *fakeHost) PutObject(spaceID uint32, key, value []byte) error {
	if h.objects[spaceID] == nil {
		h.objects[spaceID] = map[string][]byte{}
	}
	h.objects[spaceID][string(key)] = append([]byte(nil), value...)
	return nil
}
func (h *fakeHost) RemoveObject(spaceID uint32, key []byte) error {
	delete(h.objects[spaceID], string(key))
	return nil
}
func (h *fakeHost) CheckAuthority(chain.Account) (bool, error) { return true, nil }
func (h *fakeHost) GetCaller() chain.Account                   { return chain.Account{} }
func (h *fakeHost) CallProgram(chain.Account, []byte, []string) ([]byte, []byte, int32, error) {
	return nil, nil, 0, nil
}

func mustWat2Wasm(t *testing.T, wat string) []byte {
	t.Helper()
	bytes, err := wasmer.Wat2Wasm(wat)
	if err != nil {
		t.Fatalf("Wat2Wasm: %v", err)
	}
	return bytes
}

func TestRunProgramEmptyStartExitsZero(t *testing.T) {
	bytecode := mustWat2Wasm(t, `(module
		(memory (export "memory") 1)
		(func (export "_start")))`)

	r := New()
	code, err := r.RunProgram(bytecode, newFakeHost())
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
}

func TestRunProgramProcExitReturnsExitCode(t *testing.T) {
	bytecode := mustWat2Wasm(t, `(module
		(import "wasi_snapshot_preview1" "proc_exit" (func $proc_exit (param i32)))
		(memory (export "memory") 1)
		(func (export "_start")
			i32.const 7
			call $proc_exit))`)

	r := New()
	code, err := r.RunProgram(bytecode, newFakeHost())
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if code != 7 {
		t.Fatalf("exit code = %d, want 7", code)
	}
}

func TestRunProgramTrapIsGenuineError(t *testing.T) {
	bytecode := mustWat2Wasm(t, `(module
		(memory (export "memory") 1)
		(func (export "_start") unreachable))`)

	r := New()
	if _, err := r.RunProgram(bytecode, newFakeHost()); err == nil {
		t.Fatal("expected an unreachable trap to surface as a genuine engine error")
	}
}

func TestRunProgramMissingMemoryExportFails(t *testing.T) {
	bytecode := mustWat2Wasm(t, `(module
		(func (export "_start")))`)

	r := New()
	if _, err := r.RunProgram(bytecode, newFakeHost()); err == nil {
		t.Fatal("expected a module with no memory export to fail")
	}
}

func TestRunProgramMissingStartExportFails(t *testing.T) {
	bytecode := mustWat2Wasm(t, `(module
		(memory (export "memory") 1))`)

	r := New()
	if _, err := r.RunProgram(bytecode, newFakeHost()); err == nil {
		t.Fatal("expected a module with no _start export to fail")
	}
}

func TestRunProgramPutThenGetObjectRoundtrips(t *testing.T) {
	bytecode := mustWat2Wasm(t, `(module
		(import "env" "koinos_put_object" (func $put (param i32 i32 i32 i32 i32) (result i32)))
		(import "env" "koinos_get_object" (func $get (param i32 i32 i32 i32 i32 i32) (result i32)))
		(memory (export "memory") 1)
		(data (i32.const 0) "k")
		(data (i32.const 1) "v")
		(func (export "_start")
			(drop (call $put (i32.const 0) (i32.const 0) (i32.const 1) (i32.const 1) (i32.const 1)))
			(drop (call $get (i32.const 0) (i32.const 0) (i32.const 1) (i32.const 100) (i32.const 16) (i32.const 200)))))`)

	h := newFakeHost()
	r := New()
	code, err := r.RunProgram(bytecode, h)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if got, ok := h.GetObject(0, []byte("k")); !ok || string(got) != "v" {
		t.Fatalf("host object after put_object = %q, %v, want v, true", got, ok)
	}
}
