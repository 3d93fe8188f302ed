package kernelhost

import (
	"context"
	"iter"
)

// Client runs commands on a kernel and correlates the events they produce.
//
// Lifecycle: Clients are single-use. After Close(), create a new client with NewClient().
//
// Example usage:
//
//	client := NewClient()
//	defer client.Close()
//
//	err := client.Start(ctx,
//	    WithLogger(slog.Default()),
//	    WithArgs("stdio"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.Execute(ctx, map[string]any{"code": "1 + 1"}, "SubmitCode")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, event := range result.Events {
//	    // Process event...
//	}
type Client interface {
	// Start spawns the kernel, or uses the transport given with
	// WithTransport, and waits until it is ready.
	// Returns KernelNotFoundError if the kernel is not found, and
	// KernelExitedError if it exits before becoming ready.
	Start(ctx context.Context, opts ...Option) error

	// Execute submits a command and waits for the kernel to complete it.
	// The result holds every event correlated to the command.
	// Returns a CommandFailedError if the kernel reports CommandFailed.
	Execute(ctx context.Context, command any, commandType string) (*Result, error)

	// Events returns an iterator over every event the kernel produces
	// until ctx is done, the client is closed, or iteration stops.
	Events(ctx context.Context) iter.Seq[*EventEnvelope]

	// Transport returns the underlying transport, or nil before Start.
	Transport() Transport

	// Close terminates the kernel and cleans up resources. A Start still
	// waiting for readiness is interrupted and returns ErrClientClosed.
	// After Close(), the client cannot be reused. Safe to call multiple times.
	Close() error
}

// NewClient creates a new client.
//
// Call Start() with options to launch the kernel:
//
//	client := NewClient()
//	err := client.Start(ctx,
//	    WithLogger(slog.Default()),
//	    WithKernelPath("dotnet-interactive"),
//	)
func NewClient() Client {
	return newClientImpl()
}
