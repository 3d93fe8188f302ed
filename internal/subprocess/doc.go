// Package subprocess provides the subprocess-based kernel transport.
//
// KernelTransport spawns the kernel as a child process and talks to it over
// its standard streams: commands are written to stdin one JSON object per
// line, events are read from stdout one JSON object per line, and stderr is
// passed through to the diagnostic sink. The transport negotiates the port of
// the kernel's HTTP side channel before launch, tracks a one-time readiness
// transition, and fans events out to any number of observers.
package subprocess
