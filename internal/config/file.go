package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk configuration of the kernel host.
// It is loaded from YAML and can be overridden by environment variables.
type File struct {
	Kernel  KernelConfig  `yaml:"kernel"`
	Logging LoggingConfig `yaml:"logging"`
}

// KernelConfig describes the kernel process.
type KernelConfig struct {
	Path          string            `yaml:"path"`
	Args          []string          `yaml:"args"`
	Cwd           string            `yaml:"cwd"`
	Env           map[string]string `yaml:"env"`
	HTTPPort      int               `yaml:"http_port"`
	MaxLineSize   int               `yaml:"max_line_size"`
	SkipDiscovery bool              `yaml:"skip_discovery"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file.
//
// Loading starts from defaults, overlays the file, then applies environment
// overrides of the form KERNELHOST_SECTION_KEY:
//
//	KERNELHOST_KERNEL_PATH, KERNELHOST_KERNEL_CWD, KERNELHOST_HTTP_PORT,
//	KERNELHOST_LOG_LEVEL, KERNELHOST_LOG_FORMAT
func Load(path string) (*File, error) {
	cfg := defaultFile()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultFile returns a File with sensible defaults.
func defaultFile() *File {
	return &File{
		Kernel: KernelConfig{
			Path: "dotnet-interactive",
			Args: []string{"stdio"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *File) error {
	if v := os.Getenv("KERNELHOST_KERNEL_PATH"); v != "" {
		cfg.Kernel.Path = v
	}

	if v := os.Getenv("KERNELHOST_KERNEL_CWD"); v != "" {
		cfg.Kernel.Cwd = v
	}

	if v := os.Getenv("KERNELHOST_HTTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KERNELHOST_HTTP_PORT: %w", err)
		}

		cfg.Kernel.HTTPPort = p
	}

	if v := os.Getenv("KERNELHOST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("KERNELHOST_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	return nil
}

// Validate checks the configuration for errors.
func (f *File) Validate() error {
	var errs []string

	if f.Kernel.Path == "" {
		errs = append(errs, "kernel.path is required")
	}

	if f.Kernel.HTTPPort < 0 || f.Kernel.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("kernel.http_port %d out of range", f.Kernel.HTTPPort))
	}

	if f.Kernel.MaxLineSize < 0 {
		errs = append(errs, "kernel.max_line_size must not be negative")
	}

	switch strings.ToLower(f.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text or json", f.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// Options converts the file into transport options with a logger built from
// the logging section.
func (f *File) Options() *Options {
	return &Options{
		Logger:        NewLogger(f.Logging),
		KernelPath:    f.Kernel.Path,
		Args:          append([]string(nil), f.Kernel.Args...),
		Cwd:           f.Kernel.Cwd,
		Env:           maps.Clone(f.Kernel.Env),
		HTTPPort:      f.Kernel.HTTPPort,
		MaxLineSize:   f.Kernel.MaxLineSize,
		SkipDiscovery: f.Kernel.SkipDiscovery,
	}
}

// NewLogger builds a slog logger from the logging section: JSON or text
// output to stdout or stderr, filtered at the configured level.
func NewLogger(cfg LoggingConfig) *slog.Logger {
	output := os.Stderr
	if strings.EqualFold(cfg.Output, "stdout") {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler

	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler).With("service", "kernelhost")
}

// ParseLevel converts a string log level to slog.Level.
// Supported levels: debug, info, warn, error. Defaults to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
