package protocol

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/wagiedev/kernelhost-go/internal/errors"
)

// EventType is the discriminant of an event envelope.
type EventType string

// Event types known to the host. Only EventKernelReady and
// EventDiagnosticLogEntryProduced change the transport's behavior; the rest
// are used by the command correlation client.
const (
	EventKernelReady                 EventType = "KernelReady"
	EventDiagnosticLogEntryProduced  EventType = "DiagnosticLogEntryProduced"
	EventCommandSucceeded            EventType = "CommandSucceeded"
	EventCommandFailed               EventType = "CommandFailed"
	EventReturnValueProduced         EventType = "ReturnValueProduced"
	EventStandardOutputValueProduced EventType = "StandardOutputValueProduced"
	EventStandardErrorValueProduced  EventType = "StandardErrorValueProduced"
	EventDisplayedValueProduced      EventType = "DisplayedValueProduced"
)

// Kind classifies an envelope for the host's own handling.
type Kind int

const (
	// KindOther is any event the host passes through without interpreting.
	KindOther Kind = iota
	// KindReady is the readiness sentinel.
	KindReady
	// KindDiagnostic is a diagnostic log entry forwarded to the sink.
	KindDiagnostic
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindDiagnostic:
		return "diagnostic"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// EventEnvelope is one decoded line of kernel output.
//
// Wire format:
//
//	{
//	  "eventType": "CommandSucceeded",
//	  "event": {...},
//	  "command": {"token": "01J...", "commandType": "SubmitCode", "command": {...}}
//	}
//
// Command is the originating command echoed back by the kernel. It is absent
// on events not caused by a command (e.g. KernelReady).
type EventEnvelope struct {
	EventType EventType       `json:"eventType"`
	Event     json.RawMessage `json:"event,omitempty"`
	Command   *CommandEcho    `json:"command,omitempty"`
}

// CommandEcho is the command envelope as echoed back on events. The payload is
// kept raw so events decode without knowing command shapes.
type CommandEcho struct {
	Token       string          `json:"token"`
	CommandType string          `json:"commandType"`
	Command     json.RawMessage `json:"command,omitempty"`
}

// Kind classifies the envelope. This is the only place event discriminants
// are interpreted by the host.
func (e *EventEnvelope) Kind() Kind {
	switch e.EventType {
	case EventKernelReady:
		return KindReady
	case EventDiagnosticLogEntryProduced:
		return KindDiagnostic
	default:
		return KindOther
	}
}

// Token returns the token of the originating command, or "".
func (e *EventEnvelope) Token() string {
	if e.Command == nil {
		return ""
	}

	return e.Command.Token
}

var errMissingEventType = stderrors.New("missing eventType")

// messagePayload is shared by DiagnosticLogEntryProduced and CommandFailed.
type messagePayload struct {
	Message string `json:"message"`
}

// Message extracts the "message" field of the event payload. It returns ""
// when the payload has no such field or is not an object.
func (e *EventEnvelope) Message() string {
	if len(e.Event) == 0 {
		return ""
	}

	var p messagePayload
	if err := json.Unmarshal(e.Event, &p); err != nil {
		return ""
	}

	return p.Message
}

// DecodeEvent decodes one line of kernel output into an event envelope.
//
// Lines that are not JSON objects, or objects without an eventType, return an
// EventDecodeError carrying the raw line.
func DecodeEvent(line []byte) (*EventEnvelope, error) {
	line = bytes.TrimSpace(line)

	var env EventEnvelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, &errors.EventDecodeError{RawData: string(line), Err: err}
	}

	if env.EventType == "" {
		return nil, &errors.EventDecodeError{
			RawData: string(line),
			Err:     errMissingEventType,
		}
	}

	return &env, nil
}
