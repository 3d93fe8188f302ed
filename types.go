package kernelhost

import (
	"github.com/wagiedev/kernelhost-go/internal/client"
	"github.com/wagiedev/kernelhost-go/internal/config"
	"github.com/wagiedev/kernelhost-go/internal/observer"
	"github.com/wagiedev/kernelhost-go/internal/port"
	"github.com/wagiedev/kernelhost-go/internal/protocol"
	"github.com/wagiedev/kernelhost-go/internal/subprocess"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures the kernel host.
type Options = config.Options

// StartInfo describes how to launch the kernel process.
type StartInfo = config.StartInfo

// ConfigFile is the YAML configuration of the kernel host.
type ConfigFile = config.File

// PortAllocator hands out free TCP ports for the kernel's HTTP side channel.
type PortAllocator = port.Allocator

// PortAllocatorFunc adapts a function to PortAllocator.
type PortAllocatorFunc = port.AllocatorFunc

// ===== Envelopes =====

// EventEnvelope is one event emitted by the kernel.
type EventEnvelope = protocol.EventEnvelope

// CommandEnvelope is one command sent to the kernel.
type CommandEnvelope = protocol.CommandEnvelope

// EventType names a kernel event.
type EventType = protocol.EventType

const (
	// EventKernelReady is emitted once when the kernel accepts commands.
	EventKernelReady = protocol.EventKernelReady

	// EventDiagnosticLogEntryProduced carries a kernel log line.
	EventDiagnosticLogEntryProduced = protocol.EventDiagnosticLogEntryProduced

	// EventCommandSucceeded completes a command.
	EventCommandSucceeded = protocol.EventCommandSucceeded

	// EventCommandFailed completes a command with an error message.
	EventCommandFailed = protocol.EventCommandFailed

	// EventReturnValueProduced carries the value of a submission.
	EventReturnValueProduced = protocol.EventReturnValueProduced

	// EventStandardOutputValueProduced carries console output.
	EventStandardOutputValueProduced = protocol.EventStandardOutputValueProduced

	// EventStandardErrorValueProduced carries console error output.
	EventStandardErrorValueProduced = protocol.EventStandardErrorValueProduced

	// EventDisplayedValueProduced carries a displayed value.
	EventDisplayedValueProduced = protocol.EventDisplayedValueProduced
)

// Subscription is an observer registration. Dispose removes it.
type Subscription = observer.Subscription

// ===== Results and status =====

// Result holds the events the kernel produced for one command.
type Result = client.Result

// Status is the lifecycle state of a spawned kernel process.
type Status = subprocess.Status

const (
	// StatusNotStarted means the process has not been spawned yet.
	StatusNotStarted = subprocess.StatusNotStarted

	// StatusRunning means the process is alive and accepting input.
	StatusRunning = subprocess.StatusRunning

	// StatusTerminated means the process exited or never started.
	StatusTerminated = subprocess.StatusTerminated
)

// NewToken returns a fresh command token.
func NewToken() string {
	return protocol.NewToken()
}
