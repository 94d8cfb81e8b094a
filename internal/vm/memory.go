package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// WASI errno values this adapter actually produces. Not a complete
// preview1 table, only the subset the host functions below return.
const (
	errnoSuccess uint32 = 0
	errnoBadf    uint32 = 8
	errnoInval   uint32 = 28
)

// guestMemory wraps a module's linear memory with bounds-checked accessors.
// Every pointer argument crossing the host/guest boundary goes through
// here; an out-of-range access returns an error, which wasmer-go turns
// into a trap, matching the ABI's pointer-validation-results-in-a-trap rule.
type guestMemory struct {
	mem *wasmer.Memory
}

func (g *guestMemory) bytes() []byte {
	return g.mem.Data()
}

func (g *guestMemory) read(ptr, length int32) ([]byte, error) {
	if ptr < 0 || length < 0 {
		return nil, fmt.Errorf("vm: negative pointer or length")
	}
	data := g.bytes()
	end := int64(ptr) + int64(length)
	if end > int64(len(data)) {
		return nil, fmt.Errorf("vm: read out of bounds: ptr=%d len=%d mem=%d", ptr, length, len(data))
	}
	out := make([]byte, length)
	copy(out, data[ptr:end])
	return out, nil
}

func (g *guestMemory) write(ptr int32, value []byte) error {
	if ptr < 0 {
		return fmt.Errorf("vm: negative pointer")
	}
	data := g.bytes()
	end := int64(ptr) + int64(len(value))
	if end > int64(len(data)) {
		return fmt.Errorf("vm: write out of bounds: ptr=%d len=%d mem=%d", ptr, len(value), len(data))
	}
	copy(data[ptr:end], value)
	return nil
}

func (g *guestMemory) readU32(ptr int32) (uint32, error) {
	b, err := g.read(ptr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (g *guestMemory) writeU32(ptr int32, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return g.write(ptr, b[:])
}

func (g *guestMemory) writeByte(ptr int32, v byte) error {
	return g.write(ptr, []byte{v})
}

func i32(v int32) wasmer.Value { return wasmer.NewI32(v) }
