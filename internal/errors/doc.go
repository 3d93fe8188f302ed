// Package errors defines error types for the kernel host.
//
// This package provides structured error types that wrap the different failure
// scenarios of hosting a kernel subprocess: locating the executable, allocating
// the HTTP side-channel port, spawning the process, decoding its output and
// observing its exit. All error types support error unwrapping and can be
// checked using errors.Is, errors.As, and errors.AsType.
package errors
