package execution

import (
	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/host"
	"github.com/veltrix-chain/corechain/internal/statedelta"
)

// ReadProgram runs a read-only invocation with relaxed tolerance, meaning a nonzero
// program exit is returned as data (it is never promoted to a reversion,
// unlike the operation-dispatch path in dispatchCallProgram).
func ReadProgram(cfg Config, head *statedelta.Delta, account chain.Account, input chain.CallInput) ([]byte, []byte, int32, error) {
	ctx := NewContext(cfg, host.IntentReadOnly, head)
	return ctx.CallProgram(account, input.Stdin, input.Arguments)
}
