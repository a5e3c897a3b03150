package sandbox

import (
	"errors"
	"fmt"
)

// ErrNoModule reports a Call on a sandbox with no loaded module.
var ErrNoModule = errors.New("no module loaded")

// ErrClosed reports use of a closed sandbox.
var ErrClosed = errors.New("sandbox is closed")

// ReentrancyError reports a Call made while the sandbox is already running.
type ReentrancyError struct {
	ID string
}

func (e *ReentrancyError) Error() string {
	return fmt.Sprintf("sandbox %s is already executing", e.ID)
}

// FunctionNotFoundError reports a Call naming an export the module does not
// have.
type FunctionNotFoundError struct {
	Function string
}

func (e *FunctionNotFoundError) Error() string {
	return fmt.Sprintf("function %q not found in module", e.Function)
}

// TrapError reports a guest fault: unreachable, out-of-bounds access, stack
// overflow, or any engine failure that is not a resource or capability
// error.
type TrapError struct {
	Cause error
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("guest trapped: %v", e.Cause)
}

func (e *TrapError) Unwrap() error { return e.Cause }
