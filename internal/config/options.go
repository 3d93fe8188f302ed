package config

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/wagiedev/kernelhost-go/internal/port"
)

// StartInfo describes how to launch the kernel process.
type StartInfo struct {
	// Command is the kernel executable.
	Command string

	// Args are the kernel arguments. They are rewritten during HTTP port
	// negotiation, so the transport works on its own copy.
	Args []string

	// WorkingDirectory is the kernel's working directory.
	// If empty, the kernel inherits the host's working directory.
	WorkingDirectory string

	// Env are additional environment variables (key=value format) appended
	// to the host environment.
	Env []string
}

// Options configures the kernel host.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// KernelPath is the kernel executable. A bare name is searched for in
	// PATH and common installation directories unless SkipDiscovery is set.
	KernelPath string

	// Args are the arguments passed to the kernel.
	Args []string

	// Cwd sets the working directory for the kernel process.
	Cwd string

	// Env provides additional environment variables for the kernel process.
	Env map[string]string

	// HTTPPort pins the kernel's HTTP side-channel port. If zero, and Args
	// do not already carry --http-port, a free ephemeral port is allocated.
	HTTPPort int

	// Diagnostics receives human-readable diagnostic lines: process start
	// and exit notices, kernel stderr and kernel diagnostic log entries.
	// If nil, diagnostics are only logged.
	Diagnostics func(line string)

	// SkipDiscovery uses KernelPath exactly as given.
	SkipDiscovery bool

	// MaxLineSize sets the maximum bytes of one kernel output line.
	// If zero, uses 1MB.
	MaxLineSize int

	// PortAllocator overrides ephemeral port allocation.
	// If nil, a loopback probe is used.
	PortAllocator port.Allocator `yaml:"-"`

	// TracerProvider receives spans for kernel start and command execution.
	// If nil, the global OpenTelemetry provider is used.
	TracerProvider trace.TracerProvider `yaml:"-"`

	// Transport allows injecting a custom transport implementation.
	// If nil, the default KernelTransport is created automatically.
	Transport Transport `yaml:"-"`

	// ConfigFile names a YAML file whose settings fill every option left
	// unset. See Load for the file format.
	ConfigFile string `yaml:"-"`
}

// Resolve returns the effective options. Without ConfigFile it returns o
// itself. Otherwise the file is loaded and its values are used for every
// field o leaves at its zero value.
func (o *Options) Resolve() (*Options, error) {
	if o == nil {
		return &Options{}, nil
	}

	if o.ConfigFile == "" {
		return o, nil
	}

	file, err := Load(o.ConfigFile)
	if err != nil {
		return nil, err
	}

	resolved := *o
	base := file.Options()

	if resolved.Logger == nil {
		resolved.Logger = base.Logger
	}

	if resolved.KernelPath == "" {
		resolved.KernelPath = base.KernelPath
	}

	if resolved.Args == nil {
		resolved.Args = base.Args
	}

	if resolved.Cwd == "" {
		resolved.Cwd = base.Cwd
	}

	if resolved.Env == nil {
		resolved.Env = base.Env
	}

	if resolved.HTTPPort == 0 {
		resolved.HTTPPort = base.HTTPPort
	}

	if resolved.MaxLineSize == 0 {
		resolved.MaxLineSize = base.MaxLineSize
	}

	resolved.SkipDiscovery = resolved.SkipDiscovery || base.SkipDiscovery
	resolved.ConfigFile = ""

	return &resolved, nil
}
