package vm

import (
	"errors"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/veltrix-chain/corechain/internal/chain"
)

var errInvalidAccountLength = errors.New("vm: account must be exactly 33 bytes")

// envFunctions translates the object-storage, caller and authority calls
// into the "env" import namespace. get_object/put_object
// and the rest only take the four host functions this ABI exposes
// verbatim (koinos_get_caller, koinos_get_object, koinos_put_object,
// koinos_check_authority); get_next_object, get_prev_object,
// remove_object and call_program are the same mechanical translation
// extended to the remainder of the capability table, since a module
// needs all of it to be a complete program host, not just the four named
// examples.
func (g *guestFuncs) envFunctions(store *wasmer.Store) map[string]wasmer.IntoExtern {
	i32k := wasmer.ValueKind(wasmer.I32)

	writeResult := func(retPtr, retCap int32, data []byte, retLenPtr int32) ([]wasmer.Value, error) {
		if int32(len(data)) > retCap {
			return []wasmer.Value{i32(int32(errnoInval))}, nil
		}
		if err := g.mem.write(retPtr, data); err != nil {
			return nil, err
		}
		if err := g.mem.writeU32(retLenPtr, uint32(len(data))); err != nil {
			return nil, err
		}
		return []wasmer.Value{i32(int32(errnoSuccess))}, nil
	}

	getCaller := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			retPtr, retCap, retLenPtr := args[0].I32(), args[1].I32(), args[2].I32()
			caller := g.h.GetCaller()
			var data []byte
			if !caller.IsZero() {
				data = caller[:]
			}
			return writeResult(retPtr, retCap, data, retLenPtr)
		},
	)

	getObject := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k, i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			spaceID := uint32(args[0].I32())
			keyPtr, keyLen := args[1].I32(), args[2].I32()
			retPtr, retCap, retLenPtr := args[3].I32(), args[4].I32(), args[5].I32()
			key, err := g.mem.read(keyPtr, keyLen)
			if err != nil {
				return nil, err
			}
			val, _ := g.h.GetObject(spaceID, key)
			return writeResult(retPtr, retCap, val, retLenPtr)
		},
	)

	getNextObject := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k, i32k, i32k, i32k, i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		g.neighborObject(true),
	)

	getPrevObject := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k, i32k, i32k, i32k, i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		g.neighborObject(false),
	)

	putObject := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			spaceID := uint32(args[0].I32())
			keyPtr, keyLen := args[1].I32(), args[2].I32()
			valPtr, valLen := args[3].I32(), args[4].I32()
			key, err := g.mem.read(keyPtr, keyLen)
			if err != nil {
				return nil, err
			}
			val, err := g.mem.read(valPtr, valLen)
			if err != nil {
				return nil, err
			}
			if err := g.h.PutObject(spaceID, key, val); err != nil {
				g.hostErr = err
				return nil, err
			}
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	removeObject := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			spaceID := uint32(args[0].I32())
			keyPtr, keyLen := args[1].I32(), args[2].I32()
			key, err := g.mem.read(keyPtr, keyLen)
			if err != nil {
				return nil, err
			}
			if err := g.h.RemoveObject(spaceID, key); err != nil {
				g.hostErr = err
				return nil, err
			}
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	checkAuthority := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			accountPtr, accountLen, outPtr := args[0].I32(), args[1].I32(), args[2].I32()
			raw, err := g.mem.read(accountPtr, accountLen)
			if err != nil {
				return nil, err
			}
			account, err := accountFromBytes(raw)
			if err != nil {
				return []wasmer.Value{i32(int32(errnoInval))}, nil
			}
			ok, err := g.h.CheckAuthority(account)
			if err != nil {
				g.hostErr = err
				return nil, err
			}
			var b byte
			if ok {
				b = 1
			}
			if err := g.mem.writeByte(outPtr, b); err != nil {
				return nil, err
			}
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	callProgram := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k, i32k, i32k, i32k, i32k, i32k, i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			accountPtr, accountLen := args[0].I32(), args[1].I32()
			stdinPtr, stdinLen := args[2].I32(), args[3].I32()
			stdoutPtr, stdoutCap, stdoutLenPtr := args[4].I32(), args[5].I32(), args[6].I32()
			stderrPtr, stderrCap, stderrLenPtr := args[7].I32(), args[8].I32(), args[9].I32()
			exitCodePtr := args[10].I32()

			raw, err := g.mem.read(accountPtr, accountLen)
			if err != nil {
				return nil, err
			}
			account, err := accountFromBytes(raw)
			if err != nil {
				return []wasmer.Value{i32(int32(errnoInval))}, nil
			}
			stdin, err := g.mem.read(stdinPtr, stdinLen)
			if err != nil {
				return nil, err
			}

			stdout, stderr, exitCode, err := g.h.CallProgram(account, stdin, nil)
			if err != nil {
				g.hostErr = err
				return nil, err
			}
			if int32(len(stdout)) > stdoutCap || int32(len(stderr)) > stderrCap {
				return []wasmer.Value{i32(int32(errnoInval))}, nil
			}
			if err := g.mem.write(stdoutPtr, stdout); err != nil {
				return nil, err
			}
			if err := g.mem.writeU32(stdoutLenPtr, uint32(len(stdout))); err != nil {
				return nil, err
			}
			if err := g.mem.write(stderrPtr, stderr); err != nil {
				return nil, err
			}
			if err := g.mem.writeU32(stderrLenPtr, uint32(len(stderr))); err != nil {
				return nil, err
			}
			if err := g.mem.writeU32(exitCodePtr, uint32(exitCode)); err != nil {
				return nil, err
			}
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	return map[string]wasmer.IntoExtern{
		"koinos_get_caller":      getCaller,
		"koinos_get_object":      getObject,
		"koinos_get_next_object": getNextObject,
		"koinos_get_prev_object": getPrevObject,
		"koinos_put_object":      putObject,
		"koinos_remove_object":   removeObject,
		"koinos_check_authority": checkAuthority,
		"koinos_call_program":    callProgram,
	}
}

// neighborObject builds the get_next_object/get_prev_object callback; next
// selects the successor direction, otherwise the predecessor.
func (g *guestFuncs) neighborObject(next bool) func([]wasmer.Value) ([]wasmer.Value, error) {
	return func(args []wasmer.Value) ([]wasmer.Value, error) {
		spaceID := uint32(args[0].I32())
		keyPtr, keyLen := args[1].I32(), args[2].I32()
		foundKeyPtr, foundKeyCap, foundKeyLenPtr := args[3].I32(), args[4].I32(), args[5].I32()
		valPtr, valCap, valLenPtr := args[6].I32(), args[7].I32(), args[8].I32()

		key, err := g.mem.read(keyPtr, keyLen)
		if err != nil {
			return nil, err
		}

		var foundKey, val []byte
		var ok bool
		if next {
			foundKey, val, ok = g.h.GetNextObject(spaceID, key)
		} else {
			foundKey, val, ok = g.h.GetPrevObject(spaceID, key)
		}
		if !ok {
			return []wasmer.Value{i32(int32(errnoInval))}, nil
		}
		if int32(len(foundKey)) > foundKeyCap || int32(len(val)) > valCap {
			return []wasmer.Value{i32(int32(errnoInval))}, nil
		}
		if err := g.mem.write(foundKeyPtr, foundKey); err != nil {
			return nil, err
		}
		if err := g.mem.writeU32(foundKeyLenPtr, uint32(len(foundKey))); err != nil {
			return nil, err
		}
		if err := g.mem.write(valPtr, val); err != nil {
			return nil, err
		}
		if err := g.mem.writeU32(valLenPtr, uint32(len(val))); err != nil {
			return nil, err
		}
		return []wasmer.Value{i32(int32(errnoSuccess))}, nil
	}
}

func accountFromBytes(raw []byte) (chain.Account, error) {
	var a chain.Account
	if len(raw) != len(a) {
		return a, errInvalidAccountLength
	}
	copy(a[:], raw)
	return a, nil
}
