package protocol

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/kernelhost-go/internal/errors"
)

func TestEncodeCommand_WireFormat(t *testing.T) {
	line, err := EncodeCommand(&CommandEnvelope{
		Token:       "tok-1",
		CommandType: "Submit",
		Command:     map[string]any{},
	})
	require.NoError(t, err)
	require.Equal(t, "{\"token\":\"tok-1\",\"commandType\":\"Submit\",\"command\":{}}\n", string(line))
}

func TestEncodeCommand_NilPayload(t *testing.T) {
	line, err := EncodeCommand(&CommandEnvelope{Token: "t", CommandType: "RequestKernelInfo"})
	require.NoError(t, err)
	require.Equal(t, "{\"token\":\"t\",\"commandType\":\"RequestKernelInfo\",\"command\":null}\n", string(line))
}

func TestEncodeCommand_UnmarshalablePayload(t *testing.T) {
	_, err := EncodeCommand(&CommandEnvelope{
		Token:       "t",
		CommandType: "SubmitCode",
		Command:     map[string]any{"ch": make(chan int)},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "marshal SubmitCode command")
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		eventType EventType
		kind      Kind
		message   string
		token     string
	}{
		{
			name:      "ready",
			line:      `{"eventType":"KernelReady","event":{}}`,
			eventType: EventKernelReady,
			kind:      KindReady,
		},
		{
			name:      "diagnostic",
			line:      `{"eventType":"DiagnosticLogEntryProduced","event":{"message":"boot ok"}}`,
			eventType: EventDiagnosticLogEntryProduced,
			kind:      KindDiagnostic,
			message:   "boot ok",
		},
		{
			name:      "command failed with echo",
			line:      `{"eventType":"CommandFailed","event":{"message":"nope"},"command":{"token":"abc","commandType":"SubmitCode","command":{"code":"x"}}}`,
			eventType: EventCommandFailed,
			kind:      KindOther,
			message:   "nope",
			token:     "abc",
		},
		{
			name:      "unknown passes through",
			line:      `{"eventType":"SomethingNew","event":[1,2,3]}`,
			eventType: "SomethingNew",
			kind:      KindOther,
		},
		{
			name:      "trailing carriage return",
			line:      "{\"eventType\":\"KernelReady\",\"event\":{}}\r",
			eventType: EventKernelReady,
			kind:      KindReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEvent([]byte(tt.line))
			require.NoError(t, err)
			require.Equal(t, tt.eventType, env.EventType)
			require.Equal(t, tt.kind, env.Kind())
			require.Equal(t, tt.message, env.Message())
			require.Equal(t, tt.token, env.Token())
		})
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	for _, line := range []string{
		`not json`,
		`{"eventType":`,
		`{"event":{}}`,
		`[]`,
	} {
		t.Run(line, func(t *testing.T) {
			_, err := DecodeEvent([]byte(line))
			require.Error(t, err)

			decodeErr, ok := stderrors.AsType[*errors.EventDecodeError](err)
			require.True(t, ok)
			require.Equal(t, line, decodeErr.RawData)
		})
	}
}

func TestEventEnvelope_RoundTripKeepsPayloadOpaque(t *testing.T) {
	line := `{"eventType":"ReturnValueProduced","event":{"formattedValues":[{"mimeType":"text/plain","value":"2"}]}}`

	env, err := DecodeEvent([]byte(line))
	require.NoError(t, err)

	var payload map[string]any

	require.NoError(t, json.Unmarshal(env.Event, &payload))
	require.Contains(t, payload, "formattedValues")
	require.Empty(t, env.Message())
}

func TestTokenMatches(t *testing.T) {
	require.True(t, TokenMatches("abc", "abc"))
	require.True(t, TokenMatches("abc", "abc.1"))
	require.True(t, TokenMatches("abc", "abc.1.2"))
	require.False(t, TokenMatches("abc", "abcd"))
	require.False(t, TokenMatches("abc", ""))
	require.False(t, TokenMatches("", ""))
}

func TestNewToken_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100)

	for range 100 {
		tok := NewToken()
		require.Len(t, tok, 26)

		_, dup := seen[tok]
		require.False(t, dup)

		seen[tok] = struct{}{}
	}
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "ready", KindReady.String())
	require.Equal(t, "diagnostic", KindDiagnostic.String())
	require.Equal(t, "other", KindOther.String())
	require.Equal(t, "unknown(9)", Kind(9).String())
}
