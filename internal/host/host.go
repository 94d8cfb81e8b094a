// Package host declares the capability surface every program (WASM or
// native) sees, independent of the language it is written in. The execution
// context implements this interface; the VM adapter translates it into the
// WASI-style ABI exposed to WASM modules.
package host

import (
	"github.com/veltrix-chain/corechain/internal/chain"
)

// Intent governs which capabilities are permitted: a read-only context
// rejects any authority check outright.
type Intent int

const (
	IntentBlockApplication Intent = iota
	IntentTransactionApplication
	IntentReadOnly
)

// Fd names the two writable streams. Stdin is not a valid Write target.
type Fd int

const (
	FdStdout Fd = iota
	FdStderr
)

// Host is the capability surface exposed to one running program frame.
type Host interface {
	Arguments() []string
	Write(fd Fd, data []byte) error
	Read(buf []byte) (int, error)

	// Object storage is scoped to the calling frame's program implicitly;
	// spaceID only distinguishes partitions within that program's storage.
	GetObject(spaceID uint32, key []byte) ([]byte, bool)
	GetNextObject(spaceID uint32, key []byte) (foundKey, value []byte, ok bool)
	GetPrevObject(spaceID uint32, key []byte) (foundKey, value []byte, ok bool)
	PutObject(spaceID uint32, key, value []byte) error
	RemoveObject(spaceID uint32, key []byte) error

	CheckAuthority(account chain.Account) (bool, error)
	GetCaller() chain.Account
	CallProgram(account chain.Account, stdin []byte, arguments []string) (stdout, stderr []byte, exitCode int32, err error)
}

// Program is the entry-point contract shared by native and WASM programs
// alike: it reads its own arguments/stdin through h and returns an exit
// code. The distinguished entry point "authorize" is reachable only via
// CheckAuthority, never through CallProgram directly.
type Program interface {
	Run(h Host) (exitCode int32, err error)
}

// Runner executes compiled WASM bytecode against a Host, translating the
// module's WASI-style imports into Host calls. The returned error is a
// genuine engine failure (trap, resource limit); a program's own nonzero
// exit is reported through exitCode, not err.
type Runner interface {
	RunProgram(bytecode []byte, h Host) (exitCode int32, err error)
}
