package execution

import (
	"fmt"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/crypto"
	"github.com/veltrix-chain/corechain/internal/kerr"
	"github.com/veltrix-chain/corechain/internal/statenode"
)

// dispatchUploadProgram handles upload_program: first
// upload binds the program to the user account that signed for it;
// subsequent overwrites require the program's own authorization.
func (c *Context) dispatchUploadProgram(id chain.Account, bytecode []byte) error {
	space := statenode.SystemSpace(statenode.SpaceProgramData)
	_, exists := c.delta.Get(space.Key(id[:]))

	if exists {
		ok, err := c.CheckAuthority(id)
		if err != nil {
			return err
		}
		if !ok {
			return kerr.Reversion("unauthorized", "program must authorize its own overwrite")
		}
	} else {
		owner := chain.NewAccount(chain.AccountUser, id.Payload())
		ok, err := c.CheckAuthority(owner)
		if err != nil {
			return err
		}
		if !ok {
			return kerr.Reversion("unauthorized", "uploading user must authorize the first upload")
		}
	}

	digest := crypto.Sha256(bytecode)
	blob := make([]byte, 0, len(digest)+len(bytecode))
	blob = append(blob, digest[:]...)
	blob = append(blob, bytecode...)
	_, err := c.delta.Put(space.Key(id[:]), blob)
	return err
}

// dispatchCallProgram handles call_program: the output is
// ignored, but a nonzero exit is promoted from data to a reversion inside
// operation dispatch (strict tolerance).
func (c *Context) dispatchCallProgram(id chain.Account, input chain.CallInput) error {
	_, _, exitCode, err := c.CallProgram(id, input.Stdin, input.Arguments)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return kerr.Reversion("program-exit", fmt.Sprintf("program exited with code %d", exitCode))
	}
	return nil
}
