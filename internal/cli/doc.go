// Package cli provides kernel executable discovery and argument building for
// the kernel process.
//
// This package provides two main capabilities:
//
// # Kernel Discovery
//
// The Discoverer interface locates the kernel executable:
//
//	discoverer := cli.NewDiscoverer(&cli.Config{
//	    KernelPath: "dotnet-interactive",
//	    Logger:     slog.Default(),
//	})
//	kernelPath, err := discoverer.Discover(ctx)
//
// A path containing a separator is used as-is and must exist. A bare name is
// searched for in the following order:
//  1. System PATH
//  2. Common installation directories (/usr/local/bin, /usr/bin, ~/.dotnet/tools)
//
// # Argument Negotiation
//
// ConfigureHTTPArgs guarantees the kernel is started with exactly one
// --http-port flag, allocating a free port when the caller did not pick one
// and rewriting the deprecated --http-port-range flag:
//
//	args, port, err := cli.ConfigureHTTPArgs(ctx, args, allocator, diagnostics)
package cli
