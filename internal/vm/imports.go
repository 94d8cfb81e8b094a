package vm

import (
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/veltrix-chain/corechain/internal/host"
)

// guestFuncs holds the per-invocation state the host-function closures
// close over: the Host capability surface they translate calls into, the
// module's linear memory (bound once the instance exists), and the
// proc_exit outcome (see runner.go for why this isn't carried on the
// callback's return error).
type guestFuncs struct {
	h   host.Host
	mem *guestMemory

	exited   bool
	exitCode int32

	// hostErr carries a genuine host.Host failure (a kerr-categorized
	// error from put_object/remove_object/check_authority/call_program)
	// out of a callback. The callback both records it here and returns it
	// to abort the call immediately; RunProgram prefers this over the
	// opaque trap error wasmer-go hands back, so the category survives.
	hostErr error
}

// register builds the full import object: wasi_snapshot_preview1 for the
// mechanical syscall surface, env for the koinos_* capability calls.
func (g *guestFuncs) register(store *wasmer.Store) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()
	imports.Register("wasi_snapshot_preview1", g.wasiFunctions(store))
	imports.Register("env", g.envFunctions(store))
	return imports
}
