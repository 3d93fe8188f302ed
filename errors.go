package kernelhost

import "github.com/wagiedev/kernelhost-go/internal/errors"

// Re-export error types from internal package

// KernelNotFoundError indicates the kernel executable was not found.
type KernelNotFoundError = errors.KernelNotFoundError

// PortAllocationError indicates no free port could be allocated.
type PortAllocationError = errors.PortAllocationError

// ProcessStartError indicates the kernel process could not be spawned.
type ProcessStartError = errors.ProcessStartError

// KernelExitedError indicates the kernel exited before it became ready.
type KernelExitedError = errors.KernelExitedError

// EventDecodeError indicates a line of kernel output was not an event.
type EventDecodeError = errors.EventDecodeError

// InvalidArgumentError indicates a kernel argument has an invalid value.
type InvalidArgumentError = errors.InvalidArgumentError

// CommandFailedError indicates the kernel reported CommandFailed.
type CommandFailedError = errors.CommandFailedError

// KernelHostError is the base interface for all kernel host errors.
type KernelHostError = errors.KernelHostError

// Re-export sentinel errors from internal package.
var (
	// ErrProcessNotRunning indicates no live kernel process is available.
	ErrProcessNotRunning = errors.ErrProcessNotRunning

	// ErrTransportDisposed indicates the transport was disposed.
	ErrTransportDisposed = errors.ErrTransportDisposed

	// ErrStdinClosed indicates stdin was closed after a cancelled write.
	ErrStdinClosed = errors.ErrStdinClosed

	// ErrCommandFailed matches every CommandFailedError.
	ErrCommandFailed = errors.ErrCommandFailed

	// ErrClientNotConnected indicates the client is not connected.
	ErrClientNotConnected = errors.ErrClientNotConnected

	// ErrClientAlreadyConnected indicates the client is already connected.
	ErrClientAlreadyConnected = errors.ErrClientAlreadyConnected

	// ErrClientClosed indicates the client has been closed and cannot be reused.
	ErrClientClosed = errors.ErrClientClosed
)
