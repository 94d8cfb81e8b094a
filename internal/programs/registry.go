// Package programs holds the native (in-process) program set that shares
// the host interface contract with WASM programs, registered under the
// same account-keyed lookup a WASM program upload would use.
package programs

import (
	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/host"
)

// Registry maps system-program accounts to their in-process implementation.
type Registry struct {
	native map[chain.Account]host.Program
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{native: map[chain.Account]host.Program{}}
}

// Register installs p under id, overwriting any previous registration.
func (r *Registry) Register(id chain.Account, p host.Program) {
	r.native[id] = p
}

// Lookup returns the native program registered at id, if any.
func (r *Registry) Lookup(id chain.Account) (host.Program, bool) {
	p, ok := r.native[id]
	return p, ok
}
