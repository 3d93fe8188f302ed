package cli

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wagiedev/kernelhost-go/internal/errors"
)

// Config holds configuration for kernel discovery.
type Config struct {
	// KernelPath is the kernel executable. A value containing a path
	// separator skips the search.
	KernelPath string

	// Logger is an optional logger for discovery operations.
	// If nil, a default no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates the kernel executable.
type Discoverer interface {
	// Discover locates the kernel executable.
	// Returns the path to the executable or an error.
	Discover(ctx context.Context) (string, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	cfg *Config
	log *slog.Logger

	// homeDir is swapped in tests.
	homeDir func() (string, error)
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new kernel discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}

	return &discoverer{
		cfg:     cfg,
		log:     log,
		homeDir: os.UserHomeDir,
	}
}

// Discover locates the kernel executable.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.log.Debug("Discovering kernel executable", "kernel_path", d.cfg.KernelPath)

	name := d.cfg.KernelPath
	if name == "" {
		return "", &errors.KernelNotFoundError{}
	}

	// Explicit path: use it and only it
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}

		d.log.Debug("Explicit kernel path not found", "kernel_path", name)

		return "", &errors.KernelNotFoundError{SearchedPaths: []string{name}}
	}

	searchedPaths := make([]string, 0, 4)

	if path, err := exec.LookPath(name); err == nil {
		d.log.Debug("Found kernel in PATH", "path", path)

		return path, nil
	}

	searchedPaths = append(searchedPaths, "$PATH")

	commonDirs := []string{"/usr/local/bin", "/usr/bin"}

	if homeDir, err := d.homeDir(); err == nil {
		commonDirs = append(commonDirs, filepath.Join(homeDir, ".dotnet", "tools"))
	}

	for _, dir := range commonDirs {
		path := filepath.Join(dir, name)
		searchedPaths = append(searchedPaths, path)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			d.log.Debug("Found kernel at common path", "path", path)

			return path, nil
		}
	}

	d.log.Warn("Kernel executable not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.KernelNotFoundError{SearchedPaths: searchedPaths}
}
