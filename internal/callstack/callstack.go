// Package callstack implements the last-in-first-out stack of program
// invocation frames and the recorder that preserves a post-mortem trace of
// every completed frame.
package callstack

import (
	"github.com/google/uuid"

	"github.com/veltrix-chain/corechain/internal/chain"
	"github.com/veltrix-chain/corechain/internal/kerr"
)

// Frame is one program invocation's view of the world: its program id, its
// arguments, its stdin with a sequential-read cursor, and the stdout/stderr
// buffers it has written so far.
type Frame struct {
	ProgramID   chain.Account
	Arguments   []string
	Stdin       []byte
	InputOffset int
	Stdout      []byte
	Stderr      []byte
}

// ReadStdin copies up to len(buf) bytes starting at InputOffset, advancing
// the cursor, and returns the number of bytes copied.
func (f *Frame) ReadStdin(buf []byte) int {
	if f.InputOffset >= len(f.Stdin) {
		return 0
	}
	n := copy(buf, f.Stdin[f.InputOffset:])
	f.InputOffset += n
	return n
}

// WriteStdout appends to the frame's stdout buffer.
func (f *Frame) WriteStdout(data []byte) { f.Stdout = append(f.Stdout, data...) }

// WriteStderr appends to the frame's stderr buffer.
func (f *Frame) WriteStderr(data []byte) { f.Stderr = append(f.Stderr, data...) }

// RecordedFrame is a snapshot appended to the recorder once its frame
// completes.
type RecordedFrame struct {
	Frame    Frame
	Depth    int
	ExitCode int32
}

// Recorder accumulates a copy of every completed frame across one
// execution context, giving the caller a post-mortem reconstruction of the
// call tree.
type Recorder struct {
	runID  uuid.UUID
	frames []RecordedFrame
}

// NewRecorder starts a fresh recorder for one execution context.
func NewRecorder() *Recorder {
	return &Recorder{runID: uuid.New()}
}

func (r *Recorder) RunID() uuid.UUID { return r.runID }

func (r *Recorder) record(f Frame, depth int, exitCode int32) {
	cp := f
	cp.Stdin = append([]byte(nil), f.Stdin...)
	cp.Stdout = append([]byte(nil), f.Stdout...)
	cp.Stderr = append([]byte(nil), f.Stderr...)
	cp.Arguments = append([]string(nil), f.Arguments...)
	r.frames = append(r.frames, RecordedFrame{Frame: cp, Depth: depth, ExitCode: exitCode})
}

// Frames returns every completed frame recorded so far, in completion order.
func (r *Recorder) Frames() []RecordedFrame { return r.frames }

// Stack is a bounded-depth LIFO stack of invocation frames.
type Stack struct {
	maxDepth int
	frames   []*Frame
	recorder *Recorder
}

// New builds a stack bounded to maxDepth frames, recording completed
// frames into rec (which may be nil to skip recording).
func New(maxDepth int, rec *Recorder) *Stack {
	return &Stack{maxDepth: maxDepth, recorder: rec}
}

// Push adds a new top frame, failing with a reversion if doing so would
// exceed the configured maximum depth.
func (s *Stack) Push(f *Frame) error {
	if len(s.frames) >= s.maxDepth {
		return kerr.Reversion("call-stack-overflow", "maximum call stack depth exceeded")
	}
	s.frames = append(s.frames, f)
	return nil
}

// Pop removes and returns the top frame, recording it with the given exit
// code.
func (s *Stack) Pop(exitCode int32) *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	if s.recorder != nil {
		s.recorder.record(*top, len(s.frames)+1, exitCode)
	}
	return top
}

// Peek returns the current top frame without removing it.
func (s *Stack) Peek() (*Frame, bool) {
	if len(s.frames) == 0 {
		return nil, false
	}
	return s.frames[len(s.frames)-1], true
}

// Caller returns the frame immediately below the top, or (nil, false) at
// depth 1 (no enclosing caller).
func (s *Stack) Caller() (*Frame, bool) {
	if len(s.frames) < 2 {
		return nil, false
	}
	return s.frames[len(s.frames)-2], true
}

// Depth reports the current stack depth.
func (s *Stack) Depth() int { return len(s.frames) }
