package kernelhost

import (
	"log/slog"
	"maps"

	"go.opentelemetry.io/otel/trace"

	"github.com/wagiedev/kernelhost-go/internal/config"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithKernelPath sets the kernel executable. A bare name is searched for in
// PATH and common installation directories.
func WithKernelPath(path string) Option {
	return func(o *Options) {
		o.KernelPath = path
	}
}

// WithArgs sets the kernel's command-line arguments.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.Args = append([]string(nil), args...)
	}
}

// WithCwd sets the working directory for the kernel process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv adds environment variables for the kernel process.
// Repeated calls merge, later values win.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		maps.Copy(o.Env, env)
	}
}

// WithDiagnostics sets the sink for human-readable diagnostic lines:
// process notices, kernel stderr and kernel diagnostic log entries.
func WithDiagnostics(sink func(line string)) Option {
	return func(o *Options) {
		o.Diagnostics = sink
	}
}

// WithHTTPPort pins the kernel's HTTP side-channel port instead of
// allocating a free one.
func WithHTTPPort(port int) Option {
	return func(o *Options) {
		o.HTTPPort = port
	}
}

// WithMaxLineSize sets the maximum size of one kernel output line.
func WithMaxLineSize(size int) Option {
	return func(o *Options) {
		o.MaxLineSize = size
	}
}

// WithSkipDiscovery uses the kernel path exactly as given.
func WithSkipDiscovery() Option {
	return func(o *Options) {
		o.SkipDiscovery = true
	}
}

// WithPortAllocator overrides ephemeral port allocation.
func WithPortAllocator(allocator PortAllocator) Option {
	return func(o *Options) {
		o.PortAllocator = allocator
	}
}

// WithTracerProvider sets the OpenTelemetry provider for kernel start and
// command execution spans. The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

// WithTransport injects a custom transport, bypassing process spawning.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// WithConfigFile reads settings from a YAML file. Options set in code take
// precedence over the file.
func WithConfigFile(path string) Option {
	return func(o *Options) {
		o.ConfigFile = path
	}
}

// LoadConfig reads a YAML configuration file, applies KERNELHOST_*
// environment overrides and validates the result.
func LoadConfig(path string) (*ConfigFile, error) {
	return config.Load(path)
}
