// Package vm is the WASM adapter: it compiles program bytecode with
// wasmer-go, caches the compiled module by content hash, and for each
// invocation instantiates a fresh instance wired to the host-function
// imports that translate the WASI-style ABI into host.Host calls.
// It implements host.Runner.
package vm

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/veltrix-chain/corechain/internal/host"
	"github.com/veltrix-chain/corechain/internal/kerr"
)

// cachedModule pairs a compiled module with the store it was compiled
// against; wasmer-go instances must be created from the same store as
// their module.
type cachedModule struct {
	store *wasmer.Store
	mod   *wasmer.Module
}

// Runner compiles and runs WASM programs. One Runner is shared across the
// whole process; its module cache amortizes recompilation across
// repeated invocations of the same program.
type Runner struct {
	engine *wasmer.Engine

	mu    sync.Mutex
	cache map[[32]byte]*cachedModule
}

// New builds a Runner with a fresh wasmer engine and an empty cache.
func New() *Runner {
	return &Runner{
		engine: wasmer.NewEngine(),
		cache:  map[[32]byte]*cachedModule{},
	}
}

func (r *Runner) compiled(bytecode []byte) (*cachedModule, error) {
	hash := sha256.Sum256(bytecode)

	r.mu.Lock()
	entry, ok := r.cache[hash]
	r.mu.Unlock()
	if ok {
		return entry, nil
	}

	store := wasmer.NewStore(r.engine)
	mod, err := wasmer.NewModule(store, bytecode)
	if err != nil {
		return nil, fmt.Errorf("vm: compile module: %w", err)
	}
	entry = &cachedModule{store: store, mod: mod}

	r.mu.Lock()
	r.cache[hash] = entry
	r.mu.Unlock()
	return entry, nil
}

// RunProgram instantiates bytecode fresh against h and runs its _start
// export. A module that calls proc_exit or falls off the end of _start
// returns normally with the resulting exit code; a trap (bad pointer,
// unreachable) is a genuine engine failure returned as err, distinct from
// a nonzero program exit.
//
// proc_exit halts the guest by returning an error from the host callback,
// which wasmer-go surfaces as an opaque trap rather than our own error
// type, so exit status travels back through g.exited/g.exitCode instead
// of being recovered from callErr.
func (r *Runner) RunProgram(bytecode []byte, h host.Host) (int32, error) {
	entry, err := r.compiled(bytecode)
	if err != nil {
		return 0, err
	}

	g := &guestFuncs{h: h}
	imports := g.register(entry.store)

	instance, err := wasmer.NewInstance(entry.mod, imports)
	if err != nil {
		return 0, fmt.Errorf("vm: instantiate: %w", err)
	}
	defer instance.Close()

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return 0, kerr.Controller("invalid-program", "module exports no linear memory")
	}
	g.mem = &guestMemory{mem: mem}

	start, err := instance.Exports.GetFunction("_start")
	if err != nil {
		return 0, kerr.Controller("invalid-program", "module exports no _start function")
	}

	_, callErr := start()
	if g.hostErr != nil {
		return 0, g.hostErr
	}
	if g.exited {
		return g.exitCode, nil
	}
	if callErr != nil {
		return 0, fmt.Errorf("vm: trap: %w", callErr)
	}
	return 0, nil
}
