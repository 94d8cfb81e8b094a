// Package kerr defines the error taxonomy shared by the execution engine.
//
// Two categories are first class: Reversion (a program asked to abort;
// rolls back the current transaction but preserves its nonce) and
// Controller (a structural/consensus failure; fails the enclosing block or
// transaction whole). A third type, ProgramExit, describes a WASM/native
// program's non-zero exit code as an error value; the execution package
// does not construct it and passes exit codes as plain int32 results,
// which read_program (relaxed tolerance) returns as data and operation
// dispatch (strict tolerance) promotes to a Reversion.
package kerr

import "fmt"

// Category classifies an error for the execution context's branching logic.
type Category int

const (
	// CategoryReversion means the transaction's sub-node is rolled back
	// (squash is skipped) but the block continues and the nonce write
	// already applied stands.
	CategoryReversion Category = iota
	// CategoryController means the enclosing block or transaction fails
	// whole; no partial state is retained.
	CategoryController
)

func (c Category) String() string {
	switch c {
	case CategoryReversion:
		return "reversion"
	case CategoryController:
		return "controller"
	default:
		return "unknown"
	}
}

// Error is a categorized engine error carrying a stable machine-readable
// code alongside the human-readable message.
type Error struct {
	Category Category
	Code     string
	Message  string
	Wrapped  error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports whether target shares this error's code, so callers can use
// errors.Is(err, kerr.New(kerr.CategoryController, "invalid-nonce", "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New constructs a categorized error.
func New(cat Category, code, message string) *Error {
	return &Error{Category: cat, Code: code, Message: message}
}

// Wrap attaches cat/code to an underlying error, preserving it for errors.Unwrap.
func Wrap(cat Category, code string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Category: cat, Code: code, Message: err.Error(), Wrapped: err}
}

// Reversion is a convenience constructor for the common case.
func Reversion(code, message string) *Error { return New(CategoryReversion, code, message) }

// Controller is a convenience constructor for the common case.
func Controller(code, message string) *Error { return New(CategoryController, code, message) }

// CategoryOf extracts the Category from err, defaulting to Controller for
// uncategorized errors (fail closed: an unrecognized error must not be
// treated as a recoverable reversion).
func CategoryOf(err error) Category {
	var e *Error
	if as(err, &e) {
		return e.Category
	}
	return CategoryController
}

// CodeOf extracts the machine-readable Code from err, or "" if err does not
// wrap an *Error.
func CodeOf(err error) string {
	var e *Error
	if as(err, &e) {
		return e.Code
	}
	return ""
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ProgramExit carries a program's chosen exit code. It is never itself a
// Reversion or Controller error. The execution context does not construct
// it: it branches on the int32 exit code directly, surfacing it as data
// (read_program) or promoting it to a Reversion (operation dispatch).
type ProgramExit struct {
	Code   int32
	Stdout []byte
	Stderr []byte
}

func (e *ProgramExit) Error() string {
	return fmt.Sprintf("program exited with code %d", e.Code)
}
