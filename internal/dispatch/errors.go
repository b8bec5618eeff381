package dispatch

import (
	"errors"
	"fmt"
	"syscall"
)

// Exit codes for conditions detected by the dispatcher. A handler's own
// status is passed through unchanged.
const (
	ExitUnknownCommand     = 129
	ExitUsage              = 129
	ExitExecutionFailure   = 128
	ExitControlDirNotFound = 120
	ExitWorkTreeRequired   = 121
	ExitInterrupted        = 128 + int(syscall.SIGINT)
)

var (
	// ErrWorkTreeRequired is reported when a command needs a work tree but the
	// repository is bare.
	ErrWorkTreeRequired = errors.New("this operation must be run in a work tree")

	// ErrSuperPrefixUnsupported is reported when a super-prefix is passed to a
	// command that does not accept one.
	ErrSuperPrefixUnsupported = errors.New("does not support --super-prefix")
)

// ExecutionFailure is a handler that returned an error or panicked.
type ExecutionFailure struct {
	Command string
	Err     error
}

func (e *ExecutionFailure) Error() string {
	return e.Err.Error()
}

func (e *ExecutionFailure) Unwrap() error {
	return e.Err
}

// SignalError is a context cancellation cause carrying the signal that ended
// the command.
type SignalError struct {
	Signal syscall.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("interrupted by %v", e.Signal)
}

// ExitCode is 128 plus the signal number.
func (e *SignalError) ExitCode() int {
	return 128 + int(e.Signal)
}
