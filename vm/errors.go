package vm

import (
	"fmt"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

// Runtime error codes. The names are part of the host contract; note the
// historical spelling of UKNOWN_SYSCALL, which existing hosts match on.
const (
	ErrDivisionByZero = 101
	ErrStackOverflow  = 201
	ErrStackUnderflow = 202
	ErrUnknownSyscall = 301
	ErrIO             = 401
)

var errNames = map[int]string{
	ErrDivisionByZero: "DIVISION_BY_ZERO",
	ErrStackOverflow:  "STACK_OVERFLOW",
	ErrStackUnderflow: "STACK_UNDERFLOW",
	ErrUnknownSyscall: "UKNOWN_SYSCALL",
	ErrIO:             "IO_ERROR",
}

// RuntimeError is the error object carried by the machine's error event:
// a numeric code, a message, the locus of the faulting instruction, and
// the ID of the machine that raised it.
type RuntimeError struct {
	Code    int
	Message string
	Locus   string
	Machine uuid.UUID
}

// Name returns the symbolic name of the error code.
func (e *RuntimeError) Name() string {
	if name, ok := errNames[e.Code]; ok {
		return name
	}
	return "RUNTIME_ERROR"
}

func (e *RuntimeError) Error() string {
	if e.Locus != "" {
		return fmt.Sprintf("%s (%d): %s at %s", e.Name(), e.Code, e.Message, e.Locus)
	}
	return fmt.Sprintf("%s (%d): %s", e.Name(), e.Code, e.Message)
}

// fault wraps an unclassified execution failure under the catch-all code.
func fault(format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Code: ErrIO, Message: fmt.Sprintf(format, args...)}
}

// faultCode builds a runtime error with an explicit code.
func faultCode(code int, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// asRuntime converts any error to a RuntimeError, defaulting to the
// catch-all code for plain errors bubbling out of cells and devices.
func asRuntime(err error) *RuntimeError {
	if re, ok := err.(*RuntimeError); ok {
		return re
	}
	return fault("%s", err.Error())
}
