package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// CommandEnvelope is a command sent to the kernel.
//
// Wire format (one line, newline terminated):
//
//	{"token":"tok-1","commandType":"SubmitCode","command":{"code":"1+1"}}
type CommandEnvelope struct {
	// Token correlates the events the kernel produces for this command.
	Token string `json:"token"`

	// CommandType is the command discriminant.
	CommandType string `json:"commandType"`

	// Command is the command payload. It is serialized as-is.
	Command any `json:"command"`
}

// EncodeCommand serializes the envelope to a single newline-terminated line.
func EncodeCommand(cmd *CommandEnvelope) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshal %s command: %w", cmd.CommandType, err)
	}

	return append(data, '\n'), nil
}

// NewToken creates a unique command token using ULID.
func NewToken() string {
	return ulid.Make().String()
}

// TokenMatches reports whether an event token belongs to the command with the
// given token. Kernels derive child command tokens as "<parent>.<n>", so
// events for child commands belong to the parent as well.
func TokenMatches(commandToken, eventToken string) bool {
	if commandToken == "" {
		return false
	}

	return eventToken == commandToken || strings.HasPrefix(eventToken, commandToken+".")
}
