package vm

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/veltrix-chain/corechain/internal/host"
)

// wasiFunctions is the mechanical translation of host.Host's arguments,
// write and read capabilities into the wasi_snapshot_preview1 surface a
// compiled WASM module expects to link against. It does not attempt
// general POSIX-file semantics: fd_seek
// has nothing meaningful to seek within a frame's stdin cursor and always
// reports unsupported; fd_close and fd_fdstat_get are accepted as no-ops
// so that libc startup code that probes descriptors 0-2 doesn't trap.
func (g *guestFuncs) wasiFunctions(store *wasmer.Store) map[string]wasmer.IntoExtern {
	i32k := wasmer.ValueKind(wasmer.I32)
	i64k := wasmer.ValueKind(wasmer.I64)

	argsSizesGet := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			argc, argvBufSize := args[0].I32(), args[1].I32()
			argv := g.h.Arguments()
			bufSize := 0
			for _, a := range argv {
				bufSize += len(a) + 1
			}
			if err := g.mem.writeU32(argc, uint32(len(argv))); err != nil {
				return nil, err
			}
			if err := g.mem.writeU32(argvBufSize, uint32(bufSize)); err != nil {
				return nil, err
			}
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	argsGet := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			argvPtr, argvBufPtr := args[0].I32(), args[1].I32()
			argv := g.h.Arguments()
			cursor := argvBufPtr
			for i, a := range argv {
				if err := g.mem.writeU32(argvPtr+int32(i*4), uint32(cursor)); err != nil {
					return nil, err
				}
				if err := g.mem.write(cursor, append([]byte(a), 0)); err != nil {
					return nil, err
				}
				cursor += int32(len(a)) + 1
			}
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	fdWrite := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			fd, iovs, iovsLen, nwritten := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
			target, err := wasiFd(fd)
			if err != nil {
				return []wasmer.Value{i32(int32(errnoBadf))}, nil
			}
			var total uint32
			for i := int32(0); i < iovsLen; i++ {
				ptr, err := g.mem.readU32(iovs + i*8)
				if err != nil {
					return nil, err
				}
				ln, err := g.mem.readU32(iovs + i*8 + 4)
				if err != nil {
					return nil, err
				}
				data, err := g.mem.read(int32(ptr), int32(ln))
				if err != nil {
					return nil, err
				}
				if err := g.h.Write(target, data); err != nil {
					return []wasmer.Value{i32(int32(errnoInval))}, nil
				}
				total += ln
			}
			if err := g.mem.writeU32(nwritten, total); err != nil {
				return nil, err
			}
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	fdRead := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			fd, iovs, iovsLen, nread := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
			if fd != 0 {
				return []wasmer.Value{i32(int32(errnoBadf))}, nil
			}
			var total uint32
			for i := int32(0); i < iovsLen; i++ {
				ptr, err := g.mem.readU32(iovs + i*8)
				if err != nil {
					return nil, err
				}
				ln, err := g.mem.readU32(iovs + i*8 + 4)
				if err != nil {
					return nil, err
				}
				buf := make([]byte, ln)
				n, err := g.h.Read(buf)
				if err != nil {
					return []wasmer.Value{i32(int32(errnoInval))}, nil
				}
				if err := g.mem.write(int32(ptr), buf[:n]); err != nil {
					return nil, err
				}
				total += uint32(n)
				if n < int(ln) {
					break
				}
			}
			if err := g.mem.writeU32(nread, total); err != nil {
				return nil, err
			}
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	fdClose := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	fdFdstatGet := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			statPtr := args[1].I32()
			if err := g.mem.write(statPtr, make([]byte, 24)); err != nil {
				return nil, err
			}
			return []wasmer.Value{i32(int32(errnoSuccess))}, nil
		},
	)

	fdSeek := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k, i64k, i32k, i32k),
			wasmer.NewValueTypes(i32k),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			return []wasmer.Value{i32(int32(errnoInval))}, nil
		},
	)

	procExit := wasmer.NewFunction(store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(i32k),
			wasmer.NewValueTypes(),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			g.exited = true
			g.exitCode = args[0].I32()
			return nil, fmt.Errorf("vm: proc_exit(%d)", g.exitCode)
		},
	)

	return map[string]wasmer.IntoExtern{
		"args_get":        argsGet,
		"args_sizes_get":  argsSizesGet,
		"fd_write":        fdWrite,
		"fd_read":         fdRead,
		"fd_close":        fdClose,
		"fd_fdstat_get":   fdFdstatGet,
		"fd_seek":         fdSeek,
		"proc_exit":       procExit,
	}
}

func wasiFd(fd int32) (host.Fd, error) {
	switch fd {
	case 1:
		return host.FdStdout, nil
	case 2:
		return host.FdStderr, nil
	default:
		return 0, fmt.Errorf("vm: fd %d is not writable", fd)
	}
}
