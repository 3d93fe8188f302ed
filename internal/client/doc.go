// Package client implements the command Client for a running kernel.
//
// The transport only moves envelopes. The Client adds request/response
// semantics on top of it:
//   - Start connects a transport and waits for the kernel to become ready
//   - Execute submits a command and collects the events echoing its token
//     until the kernel reports CommandSucceeded or CommandFailed
//   - Events streams every kernel event as an iterator
//
// A Client is single-use: after Close it cannot be started again.
package client
