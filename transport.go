package kernelhost

import (
	"context"

	"github.com/wagiedev/kernelhost-go/internal/cli"
	"github.com/wagiedev/kernelhost-go/internal/config"
	"github.com/wagiedev/kernelhost-go/internal/subprocess"
)

// Transport defines the interface for kernel communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., a remote kernel).
//
// The default implementation is KernelTransport which spawns a subprocess.
// Custom transports can be injected via WithTransport.
type Transport = config.Transport

// KernelTransport is the subprocess-backed Transport.
type KernelTransport = subprocess.KernelTransport

// NewTransport locates the kernel executable and starts it.
//
// It returns as soon as the start sequence is under way; call WaitForReady
// to wait for the kernel. Returns KernelNotFoundError if the executable
// cannot be located.
func NewTransport(ctx context.Context, opts ...Option) (*KernelTransport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	options, err := applyOptions(opts).Resolve()
	if err != nil {
		return nil, err
	}

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	kernelPath := options.KernelPath

	if !options.SkipDiscovery {
		discoverer := cli.NewDiscoverer(&cli.Config{
			KernelPath: options.KernelPath,
			Logger:     log,
		})

		kernelPath, err = discoverer.Discover(ctx)
		if err != nil {
			return nil, err
		}
	}

	return subprocess.NewKernelTransport(log, cli.BuildStartInfo(kernelPath, options), options), nil
}

// StartKernel starts a kernel from an explicit start descriptor. Only the
// logging, diagnostics, line size and port allocation options apply; the
// descriptor already fixes the command line.
func StartKernel(info *StartInfo, opts ...Option) *KernelTransport {
	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	return subprocess.NewKernelTransport(log, info, options)
}
