package kernelhost

import (
	"context"
	"iter"

	"github.com/wagiedev/kernelhost-go/internal/client"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl() Client {
	return &clientWrapper{impl: client.New()}
}

// Start spawns the kernel and waits until it is ready.
func (c *clientWrapper) Start(ctx context.Context, opts ...Option) error {
	return c.impl.Start(ctx, applyOptions(opts))
}

// Execute submits a command and waits for the kernel to complete it.
func (c *clientWrapper) Execute(ctx context.Context, command any, commandType string) (*Result, error) {
	return c.impl.Execute(ctx, command, commandType)
}

// Events returns an iterator over every kernel event.
func (c *clientWrapper) Events(ctx context.Context) iter.Seq[*EventEnvelope] {
	return c.impl.Events(ctx)
}

// Transport returns the underlying transport.
func (c *clientWrapper) Transport() Transport {
	return c.impl.Transport()
}

// Close terminates the kernel and cleans up resources.
func (c *clientWrapper) Close() error {
	return c.impl.Close()
}
