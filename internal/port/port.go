// Package port allocates ephemeral TCP ports for the kernel's HTTP side
// channel.
//
// The allocator binds a loopback listener on port 0, reads back the port the
// OS assigned, and closes the listener straight away so the kernel process can
// bind the same port. There is an unavoidable window in which another process
// could take the port; the kernel reports that as a startup failure.
package port

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/wagiedev/kernelhost-go/internal/errors"
)

// Allocator returns a currently free TCP port.
type Allocator interface {
	Allocate(ctx context.Context) (int, error)
}

// AllocatorFunc adapts a function to the Allocator interface.
type AllocatorFunc func(ctx context.Context) (int, error)

// Allocate implements Allocator.
func (f AllocatorFunc) Allocate(ctx context.Context) (int, error) {
	return f(ctx)
}

// Compile-time verification that both allocators implement Allocator.
var (
	_ Allocator = (*LoopbackAllocator)(nil)
	_ Allocator = AllocatorFunc(nil)
)

// LoopbackAllocator probes 127.0.0.1 for a free port.
type LoopbackAllocator struct {
	log *slog.Logger
}

// NewLoopbackAllocator creates a loopback port allocator.
func NewLoopbackAllocator(log *slog.Logger) *LoopbackAllocator {
	return &LoopbackAllocator{log: log.With("component", "port_allocator")}
}

// Allocate binds 127.0.0.1:0, records the assigned port and releases it.
//
// Returns PortAllocationError if the listener cannot be opened or does not
// report a TCP port.
func (a *LoopbackAllocator) Allocate(ctx context.Context) (int, error) {
	var lc net.ListenConfig

	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		a.log.Error("Failed to bind ephemeral port", "error", err)

		return 0, &errors.PortAllocationError{Err: err}
	}

	addr, ok := ln.Addr().(*net.TCPAddr)

	if closeErr := ln.Close(); closeErr != nil {
		a.log.Debug("Failed to close probe listener", "error", closeErr)
	}

	if !ok || addr.Port == 0 {
		return 0, &errors.PortAllocationError{
			Err: fmt.Errorf("no port observed on %s", ln.Addr()),
		}
	}

	a.log.Debug("Allocated ephemeral port", "port", addr.Port)

	return addr.Port, nil
}
