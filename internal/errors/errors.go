package errors

import (
	"errors"
	"fmt"
	"strings"
)

// KernelHostError is the base interface for all kernel host errors.
type KernelHostError interface {
	error
	IsKernelHostError() bool
}

// Compile-time verification that all error types implement KernelHostError.
var (
	_ KernelHostError = (*KernelNotFoundError)(nil)
	_ KernelHostError = (*PortAllocationError)(nil)
	_ KernelHostError = (*ProcessStartError)(nil)
	_ KernelHostError = (*KernelExitedError)(nil)
	_ KernelHostError = (*EventDecodeError)(nil)
	_ KernelHostError = (*InvalidArgumentError)(nil)
	_ KernelHostError = (*CommandFailedError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrProcessNotRunning indicates a command was submitted while no live
	// kernel process was available to receive it.
	ErrProcessNotRunning = errors.New("kernel process not running")

	// ErrTransportDisposed indicates the transport was disposed.
	ErrTransportDisposed = errors.New("kernel transport disposed")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrCommandFailed is matched by CommandFailedError.
	ErrCommandFailed = errors.New("command failed")

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.New("client closed: clients are single-use, create a new one")

	// ErrClientNotConnected indicates the client has not been started.
	ErrClientNotConnected = errors.New("client not connected")

	// ErrClientAlreadyConnected indicates Start was called twice.
	ErrClientAlreadyConnected = errors.New("client already connected")
)

// KernelNotFoundError indicates the kernel executable was not found.
type KernelNotFoundError struct {
	SearchedPaths []string
}

func (e *KernelNotFoundError) Error() string {
	return fmt.Sprintf("kernel executable not found in: %v", e.SearchedPaths)
}

// IsKernelHostError implements KernelHostError.
func (e *KernelNotFoundError) IsKernelHostError() bool { return true }

// PortAllocationError indicates an ephemeral port could not be allocated.
type PortAllocationError struct {
	Err error
}

func (e *PortAllocationError) Error() string {
	return fmt.Sprintf("unable to allocate port: %v", e.Err)
}

func (e *PortAllocationError) Unwrap() error {
	return e.Err
}

// IsKernelHostError implements KernelHostError.
func (e *PortAllocationError) IsKernelHostError() bool { return true }

// ProcessStartError indicates the kernel process could not be spawned.
type ProcessStartError struct {
	Err error
}

func (e *ProcessStartError) Error() string {
	return fmt.Sprintf("failed to start kernel process: %v", e.Err)
}

func (e *ProcessStartError) Unwrap() error {
	return e.Err
}

// IsKernelHostError implements KernelHostError.
func (e *ProcessStartError) IsKernelHostError() bool { return true }

// KernelExitedError indicates the kernel process exited before it reported
// readiness. ExitCode is -1 when the process was terminated by a signal.
type KernelExitedError struct {
	ExitCode int
	Signal   string
	Stderr   string
}

func (e *KernelExitedError) Error() string {
	var b strings.Builder

	b.WriteString("kernel process exited before ready")

	if e.Signal != "" {
		fmt.Fprintf(&b, " (signal %s)", e.Signal)
	} else {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}

	if e.Stderr != "" {
		b.WriteString(": ")
		b.WriteString(e.Stderr)
	}

	return b.String()
}

// IsKernelHostError implements KernelHostError.
func (e *KernelExitedError) IsKernelHostError() bool { return true }

// EventDecodeError indicates an inbound line was not a valid event envelope.
// This error preserves the original raw data that failed to parse.
type EventDecodeError struct {
	RawData string
	Err     error
}

func (e *EventDecodeError) Error() string {
	return fmt.Sprintf("failed to decode kernel event: %v", e.Err)
}

func (e *EventDecodeError) Unwrap() error {
	return e.Err
}

// IsKernelHostError implements KernelHostError.
func (e *EventDecodeError) IsKernelHostError() bool { return true }

// InvalidArgumentError indicates a kernel argument could not be interpreted.
type InvalidArgumentError struct {
	Flag  string
	Value string
	Err   error
}

func (e *InvalidArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid value %q for %s: %v", e.Value, e.Flag, e.Err)
	}

	return fmt.Sprintf("missing value for %s", e.Flag)
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.Err
}

// IsKernelHostError implements KernelHostError.
func (e *InvalidArgumentError) IsKernelHostError() bool { return true }

// CommandFailedError indicates the kernel reported a CommandFailed event for
// a submitted command.
type CommandFailedError struct {
	Token   string
	Message string
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command %s failed: %s", e.Token, e.Message)
}

// Is reports whether target is ErrCommandFailed.
func (e *CommandFailedError) Is(target error) bool {
	return target == ErrCommandFailed
}

// IsKernelHostError implements KernelHostError.
func (e *CommandFailedError) IsKernelHostError() bool { return true }
