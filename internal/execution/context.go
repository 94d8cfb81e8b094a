// Package execution implements the transactional layer that validates a
// block or transaction, dispatches operations to programs, meters resource
// consumption, checks signatures and authority, and assembles receipts.
// Context itself implements host.Host: it is the
// bridge every running program sees.
package execution

import (
	"fmt"

	"github.com/veltrix-chain/corechain/internal/callstack"
	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/crypto"
	"github.com/veltrix-chain/corechain/internal/host"
	"github.com/veltrix-chain/corechain/internal/kerr"
	"github.com/veltrix-chain/corechain/internal/meter"
	"github.com/veltrix-chain/corechain/internal/programs"
	"github.com/veltrix-chain/corechain/internal/statedelta"
	"github.com/veltrix-chain/corechain/internal/statenode"
)

// Config carries the execution-wide settings that do not change between
// invocations: call-depth bound, resource limits/costs, and the program
// lookup paths (native registry, WASM runner).
type Config struct {
	MaxCallDepth int
	Limits       meter.Limits
	Costs        meter.Costs
	Registry     *programs.Registry
	Runner       host.Runner

	// DefaultAccountResources is the resource-credit allowance an account
	// has when genesis has not seeded an explicit balance for it.
	DefaultAccountResources uint64

	// ReadComputeLimit overrides Limits.Compute for read-only,
	// relaxed-tolerance, reduced-budget invocations (the CLI's
	// "read compute-bandwidth limit" flag). Zero means use Limits.Compute.
	ReadComputeLimit uint64
}

// chronicler accumulates the events and log lines an execution context
// produces; it is never shared across contexts.
type chronicler struct {
	events []chain.Event
	logs   []string
}

func (c *chronicler) emit(source chain.Account, name string, data []byte, txID chain.Digest) {
	c.events = append(c.events, chain.Event{Source: source, Name: name, Data: data, TransactionID: txID})
}

func (c *chronicler) log(format string, args ...any) {
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

// Context is one execution: either a block application, a transaction
// application, or a read-only program invocation. It owns the frame stack,
// the meter, and the chronicler, none of which are shared.
type Context struct {
	cfg    Config
	intent host.Intent
	delta  *statedelta.Delta
	stack  *callstack.Stack
	meter  *meter.Meter
	tx     *chain.Transaction
	verified map[chain.Account]bool
	chron  *chronicler
}

// NewContext builds an execution context over delta with the given intent.
// The meter starts reset to cfg's limits/costs.
func NewContext(cfg Config, intent host.Intent, delta *statedelta.Delta) *Context {
	rec := callstack.NewRecorder()
	m := meter.New(cfg.Limits, cfg.Costs)
	return &Context{
		cfg:      cfg,
		intent:   intent,
		delta:    delta,
		stack:    callstack.New(cfg.MaxCallDepth, rec),
		meter:    m,
		verified: map[chain.Account]bool{},
		chron:    &chronicler{},
	}
}

// Meter exposes the context's resource meter for callers that need to open
// or inspect a session.
func (c *Context) Meter() *meter.Meter { return c.meter }

// Delta exposes the underlying state-delta handle this context writes
// through.
func (c *Context) Delta() *statedelta.Delta { return c.delta }

// SetDelta repoints the context at a different delta, used to hand
// operation dispatch a temporary child layered over the transaction's base
// node while pre-dispatch bookkeeping (nonce, resource debit) stays on the
// base itself.
func (c *Context) SetDelta(d *statedelta.Delta) { c.delta = d }

func (c *Context) currentProgram() chain.Account {
	f, ok := c.stack.Peek()
	if !ok {
		return chain.Account{}
	}
	return f.ProgramID
}

func (c *Context) lookupProgramBytecode(id chain.Account) ([]byte, bool) {
	space := statenode.SystemSpace(statenode.SpaceProgramData)
	blob, ok := c.delta.Get(space.Key(id[:]))
	if !ok || len(blob) < 32 {
		return nil, false
	}
	return blob[32:], true
}

// --- host.Host implementation ---

func (c *Context) Arguments() []string {
	f, ok := c.stack.Peek()
	if !ok {
		return nil
	}
	return f.Arguments
}

func (c *Context) Write(fd host.Fd, data []byte) error {
	f, ok := c.stack.Peek()
	if !ok {
		return kerr.Reversion("bad-file-descriptor", "no active frame")
	}
	switch fd {
	case host.FdStdout:
		f.WriteStdout(data)
	case host.FdStderr:
		f.WriteStderr(data)
	default:
		return kerr.Reversion("bad-file-descriptor", "invalid write target")
	}
	return nil
}

func (c *Context) Read(buf []byte) (int, error) {
	f, ok := c.stack.Peek()
	if !ok {
		return 0, kerr.Reversion("bad-file-descriptor", "no active frame")
	}
	return f.ReadStdin(buf), nil
}

func (c *Context) GetObject(spaceID uint32, key []byte) ([]byte, bool) {
	space := statenode.ProgramSpace(spaceID, c.currentProgram())
	return c.delta.Get(space.Key(key))
}

func (c *Context) GetNextObject(spaceID uint32, key []byte) ([]byte, []byte, bool) {
	space := statenode.ProgramSpace(spaceID, c.currentProgram())
	prefix := space.Prefix()
	target := string(space.Key(key))
	keys := c.delta.VisiblePrefixKeys(prefix)
	for _, k := range keys {
		if k > target {
			v, _ := c.delta.Get([]byte(k))
			return []byte(k[len(prefix):]), v, true
		}
	}
	return nil, nil, false
}

func (c *Context) GetPrevObject(spaceID uint32, key []byte) ([]byte, []byte, bool) {
	space := statenode.ProgramSpace(spaceID, c.currentProgram())
	prefix := space.Prefix()
	target := string(space.Key(key))
	keys := c.delta.VisiblePrefixKeys(prefix)
	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] < target {
			v, _ := c.delta.Get([]byte(keys[i]))
			return []byte(keys[i][len(prefix):]), v, true
		}
	}
	return nil, nil, false
}

func (c *Context) PutObject(spaceID uint32, key, value []byte) error {
	space := statenode.ProgramSpace(spaceID, c.currentProgram())
	compound := space.Key(key)
	existing, ok := c.delta.Get(compound)
	var before int64
	if ok {
		before = int64(len(compound) + len(existing))
	}
	after := int64(len(compound) + len(value))
	if err := c.meter.UseDiskStorage(after - before); err != nil {
		return err
	}
	_, err := c.delta.Put(compound, value)
	return err
}

func (c *Context) RemoveObject(spaceID uint32, key []byte) error {
	space := statenode.ProgramSpace(spaceID, c.currentProgram())
	compound := space.Key(key)
	existing, ok := c.delta.Get(compound)
	if !ok {
		return nil
	}
	if err := c.meter.UseDiskStorage(-int64(len(compound) + len(existing))); err != nil {
		return err
	}
	_, err := c.delta.Remove(compound)
	return err
}

func (c *Context) GetCaller() chain.Account {
	f, ok := c.stack.Caller()
	if !ok {
		return chain.Account{}
	}
	return f.ProgramID
}

// CallProgram is the host-capability entry point: it never permits a
// direct invocation of "authorize".
func (c *Context) CallProgram(account chain.Account, stdin []byte, arguments []string) ([]byte, []byte, int32, error) {
	if account.Type() != chain.AccountProgram && account.Type() != chain.AccountSystemProgram {
		return nil, nil, 0, kerr.Reversion("invalid-program", "account is not a program or system-program account")
	}
	return c.callProgramInternal(account, stdin, arguments, false)
}

func (c *Context) callProgramInternal(account chain.Account, stdin []byte, arguments []string, allowAuthorize bool) ([]byte, []byte, int32, error) {
	if !allowAuthorize && len(arguments) > 0 && arguments[0] == "authorize" {
		return nil, nil, 0, kerr.Reversion("invalid-program", "authorize is reachable only through check_authority")
	}

	frame := &callstack.Frame{ProgramID: account, Arguments: arguments, Stdin: stdin}
	if err := c.stack.Push(frame); err != nil {
		return nil, nil, 0, err
	}

	var exitCode int32
	var runErr error
	if account.Type() == chain.AccountSystemProgram {
		prog, ok := c.cfg.Registry.Lookup(account)
		if !ok {
			c.stack.Pop(-1)
			return nil, nil, 0, kerr.Reversion("invalid-program", "system program not registered")
		}
		exitCode, runErr = prog.Run(c)
	} else {
		bytecode, ok := c.lookupProgramBytecode(account)
		if !ok {
			c.stack.Pop(-1)
			return nil, nil, 0, kerr.Reversion("invalid-program", "program does not exist")
		}
		exitCode, runErr = c.cfg.Runner.RunProgram(bytecode, c)
	}

	popped := c.stack.Pop(exitCode)
	if runErr != nil {
		return popped.Stdout, popped.Stderr, exitCode, runErr
	}
	c.chron.emit(account, "program_called", nil, c.currentTxID())
	return popped.Stdout, popped.Stderr, exitCode, nil
}

func (c *Context) currentTxID() chain.Digest {
	if c.tx == nil {
		return chain.Digest{}
	}
	return c.tx.ID
}

// CheckAuthority checks authority: program accounts delegate to
// their own authorize entry point; user accounts are checked against the
// current transaction's verified signer set; no account type ever
// authorizes outside a block or transaction intent.
func (c *Context) CheckAuthority(account chain.Account) (bool, error) {
	if c.intent == host.IntentReadOnly {
		return false, kerr.Reversion("read-only-context", "check_authority is unavailable in read-only contexts")
	}

	switch account.Type() {
	case chain.AccountProgram, chain.AccountSystemProgram:
		stdout, _, exitCode, err := c.callProgramInternal(account, nil, []string{"authorize"}, true)
		if err != nil {
			return false, err
		}
		if exitCode != 0 {
			return false, nil
		}
		if len(stdout) != 1 || (stdout[0] != 0 && stdout[0] != 1) {
			return false, kerr.Reversion("invalid-authorization-response", "authorize must return a single boolean byte")
		}
		return stdout[0] == 1, nil
	default:
		if c.tx == nil {
			return false, nil
		}
		for _, auth := range c.tx.Authorizations {
			if c.verified[auth.Signer] {
				continue
			}
			if crypto.Verify(auth.Signer.Payload(), c.tx.ID, auth.Signature) {
				c.verified[auth.Signer] = true
			}
		}
		return c.verified[account], nil
	}
}
