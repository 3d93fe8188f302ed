package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/wagiedev/kernelhost-go/internal/config"
	"github.com/wagiedev/kernelhost-go/internal/errors"
	"github.com/wagiedev/kernelhost-go/internal/port"
)

const (
	// HTTPPortFlag pins the port of the kernel's HTTP side channel.
	HTTPPortFlag = "--http-port"

	// HTTPPortRangeFlag lets the kernel pick from a range. Deprecated: it is
	// rewritten to HTTPPortFlag with a host-allocated port.
	HTTPPortRangeFlag = "--http-port-range"
)

// ConfigureHTTPArgs returns a copy of args that carries exactly one
// --http-port flag, together with the port it names.
//
// Rules, in priority order:
//  1. --http-port <n> already present: n is parsed and args are unchanged.
//  2. --http-port-range <range> present: the flag and its value are replaced
//     in place by --http-port <fresh port>, and a deprecation notice is
//     written to diagnostics.
//  3. Otherwise --http-port <fresh port> is appended.
//
// Returns InvalidArgumentError if the --http-port value is missing or not a
// valid port, and PortAllocationError if a fresh port cannot be allocated.
func ConfigureHTTPArgs(
	ctx context.Context,
	args []string,
	allocator port.Allocator,
	diagnostics func(string),
) ([]string, int, error) {
	args = slices.Clone(args)

	if idx := slices.Index(args, HTTPPortFlag); idx >= 0 {
		p, err := parsePortArg(args, idx)
		if err != nil {
			return nil, 0, err
		}

		return args, p, nil
	}

	p, err := allocator.Allocate(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("allocate http port: %w", err)
	}

	portArg := strconv.Itoa(p)

	if idx := slices.Index(args, HTTPPortRangeFlag); idx >= 0 {
		end := min(idx+2, len(args))
		args = slices.Replace(args, idx, end, HTTPPortFlag, portArg)

		if diagnostics != nil {
			diagnostics(fmt.Sprintf(
				"Warning: %s is deprecated and was replaced with %s %d",
				HTTPPortRangeFlag, HTTPPortFlag, p,
			))
		}

		return args, p, nil
	}

	return append(args, HTTPPortFlag, portArg), p, nil
}

var errPortOutOfRange = stderrors.New("port must be between 1 and 65535")

// parsePortArg parses the value following the flag at idx.
func parsePortArg(args []string, idx int) (int, error) {
	if idx+1 >= len(args) {
		return 0, &errors.InvalidArgumentError{Flag: args[idx]}
	}

	value := args[idx+1]

	p, err := strconv.Atoi(value)
	if err != nil {
		return 0, &errors.InvalidArgumentError{Flag: args[idx], Value: value, Err: err}
	}

	if p < 1 || p > 65535 {
		return 0, &errors.InvalidArgumentError{
			Flag:  args[idx],
			Value: value,
			Err:   errPortOutOfRange,
		}
	}

	return p, nil
}

// BuildStartInfo constructs the kernel start descriptor from options.
//
// A pinned Options.HTTPPort is added as --http-port unless the arguments
// already carry one, so negotiation keeps it as given.
func BuildStartInfo(kernelPath string, options *config.Options) *config.StartInfo {
	args := slices.Clone(options.Args)

	if options.HTTPPort > 0 && !slices.Contains(args, HTTPPortFlag) {
		if idx := slices.Index(args, HTTPPortRangeFlag); idx >= 0 {
			args = slices.Delete(args, idx, min(idx+2, len(args)))
		}

		args = append(args, HTTPPortFlag, strconv.Itoa(options.HTTPPort))
	}

	return &config.StartInfo{
		Command:          kernelPath,
		Args:             args,
		WorkingDirectory: options.Cwd,
		Env:              BuildEnvironment(options),
	}
}

// BuildEnvironment returns the additional environment variables for the
// kernel process in key=value form, sorted by key.
func BuildEnvironment(options *config.Options) []string {
	env := make([]string, 0, len(options.Env))

	for _, k := range slices.Sorted(maps.Keys(options.Env)) {
		env = append(env, k+"="+options.Env[k])
	}

	return env
}
