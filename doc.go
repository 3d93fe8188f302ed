// Package kernelhost hosts an interactive kernel as a child process and talks
// to it over line-delimited JSON on the process's standard streams.
//
// The kernel receives one command envelope per line on stdin and emits one
// event envelope per line on stdout. The host negotiates an HTTP side-channel
// port on the kernel's command line, waits for the KernelReady event, fans
// events out to any number of observers, and forwards kernel stderr and
// diagnostic log entries to a diagnostic sink.
//
// # Basic Usage
//
// Use WithClient to start a kernel, run commands and shut it down:
//
//	err := kernelhost.WithClient(ctx, func(c kernelhost.Client) error {
//	    result, err := c.Execute(ctx, map[string]any{"code": "1 + 1"}, "SubmitCode")
//	    if err != nil {
//	        return err
//	    }
//	    for _, event := range result.Events {
//	        fmt.Println(event.EventType, string(event.Event))
//	    }
//	    return nil
//	},
//	    kernelhost.WithKernelPath("dotnet-interactive"),
//	    kernelhost.WithArgs("stdio"),
//	)
//
// # Transport
//
// For raw envelope traffic without command correlation, use NewTransport:
//
//	transport, err := kernelhost.NewTransport(ctx, kernelhost.WithArgs("stdio"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer transport.Dispose()
//
//	sub := transport.SubscribeToKernelEvents(func(e *kernelhost.EventEnvelope) {
//	    fmt.Println(e.EventType)
//	})
//	defer sub.Dispose()
//
//	if err := transport.WaitForReady(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration
//
// Options can be given in code, read from a YAML file, or both. Values set
// in code win over the file:
//
//	kernel:
//	  path: dotnet-interactive
//	  args: [stdio]
//	  http_port: 0
//	logging:
//	  level: debug
//	  format: json
//
// Load it with WithConfigFile("kernelhost.yaml"). KERNELHOST_* environment
// variables override the file.
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	transport, err := kernelhost.NewTransport(ctx, kernelhost.WithLogger(logger))
//
// Human-readable process notices and kernel stderr go to the sink given with
// WithDiagnostics.
//
// # Error Handling
//
// Typed errors describe startup failures:
//
//	if err := transport.WaitForReady(ctx); err != nil {
//	    if exitErr, ok := errors.AsType[*kernelhost.KernelExitedError](err); ok {
//	        log.Fatalf("kernel exited with code %d: %s", exitErr.ExitCode, exitErr.Stderr)
//	    }
//	}
package kernelhost
