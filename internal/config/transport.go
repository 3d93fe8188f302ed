// Package config provides configuration types for the kernel host.
package config

import (
	"context"

	"github.com/wagiedev/kernelhost-go/internal/observer"
	"github.com/wagiedev/kernelhost-go/internal/protocol"
)

// Transport defines the interface for communicating with a kernel.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., a remote kernel).
//
// The default implementation is KernelTransport which spawns a subprocess.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	// WaitForReady blocks until the kernel reports readiness, the kernel
	// fails to start or exits, or ctx is done. It may be called any number
	// of times; once resolved it returns immediately.
	WaitForReady(ctx context.Context) error

	// SubscribeToKernelEvents registers fn for every event envelope the
	// kernel produces. Dispose the returned subscription to unregister.
	SubscribeToKernelEvents(fn func(*protocol.EventEnvelope)) *observer.Subscription

	// SubmitCommand writes one command envelope to the kernel. An empty
	// token is replaced with a generated one.
	SubmitCommand(ctx context.Context, command any, commandType, token string) error

	// HTTPPort returns the port of the kernel's HTTP side channel, or 0
	// before argument negotiation has completed.
	HTTPPort() int

	// Dispose terminates the kernel. It's safe to call Dispose multiple times.
	Dispose() error
}
