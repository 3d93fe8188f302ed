package client

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wagiedev/kernelhost-go/internal/config"
	"github.com/wagiedev/kernelhost-go/internal/errors"
	"github.com/wagiedev/kernelhost-go/internal/observer"
	"github.com/wagiedev/kernelhost-go/internal/protocol"
)

type submittedCommand struct {
	Command     any
	CommandType string
	Token       string
}

// mockTransport implements config.Transport for testing.
// The respond hook plays the kernel: it is called on its own goroutine for
// every submitted command and may emit events.
type mockTransport struct {
	observers observer.Set[*protocol.EventEnvelope]
	readyErr  error
	readyGate chan struct{} // when set, WaitForReady blocks until it closes
	submitErr error
	respond   func(m *mockTransport, cmd submittedCommand)

	mu        sync.Mutex
	submitted []submittedCommand
	disposed  int
}

func (m *mockTransport) WaitForReady(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.readyGate != nil {
		select {
		case <-m.readyGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return m.readyErr
}

func (m *mockTransport) SubscribeToKernelEvents(fn func(*protocol.EventEnvelope)) *observer.Subscription {
	return m.observers.Subscribe(fn)
}

func (m *mockTransport) SubmitCommand(_ context.Context, command any, commandType, token string) error {
	if m.submitErr != nil {
		return m.submitErr
	}

	cmd := submittedCommand{Command: command, CommandType: commandType, Token: token}

	m.mu.Lock()
	m.submitted = append(m.submitted, cmd)
	m.mu.Unlock()

	if m.respond != nil {
		go m.respond(m, cmd)
	}

	return nil
}

func (m *mockTransport) HTTPPort() int { return 4242 }

func (m *mockTransport) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disposed++

	return nil
}

func (m *mockTransport) disposeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.disposed
}

// emit delivers an event the way the kernel reader does.
func (m *mockTransport) emit(eventType protocol.EventType, event string, token string) {
	env := &protocol.EventEnvelope{EventType: eventType, Event: json.RawMessage(event)}
	if token != "" {
		env.Command = &protocol.CommandEcho{Token: token}
	}

	m.observers.Notify(env)
}

func isStarting(c *Client) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.starting
}

func startClient(t *testing.T, transport *mockTransport) *Client {
	t.Helper()

	client := New()

	require.NoError(t, client.Start(context.Background(), &config.Options{Transport: transport}))

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestClient_StartWaitsForReadiness(t *testing.T) {
	transport := &mockTransport{}

	client := startClient(t, transport)

	assert.True(t, client.isConnected())
	assert.Same(t, transport, client.Transport())
}

func TestClient_StartFailureDisposesTransport(t *testing.T) {
	exitErr := &errors.KernelExitedError{ExitCode: 3}
	transport := &mockTransport{readyErr: exitErr}

	client := New()

	err := client.Start(context.Background(), &config.Options{Transport: transport})
	require.ErrorIs(t, err, exitErr)
	assert.False(t, client.isConnected())
	assert.Equal(t, 1, transport.disposeCount())
}

func TestClient_StartTwice(t *testing.T) {
	client := startClient(t, &mockTransport{})

	err := client.Start(context.Background(), &config.Options{Transport: &mockTransport{}})
	require.ErrorIs(t, err, errors.ErrClientAlreadyConnected)
}

func TestClient_StartAfterClose(t *testing.T) {
	client := New()
	require.NoError(t, client.Close())

	err := client.Start(context.Background(), &config.Options{Transport: &mockTransport{}})
	require.ErrorIs(t, err, errors.ErrClientClosed)
}

func TestClient_CloseInterruptsStart(t *testing.T) {
	transport := &mockTransport{readyGate: make(chan struct{})}
	client := New()

	started := make(chan error, 1)

	go func() {
		started <- client.Start(context.Background(), &config.Options{Transport: transport})
	}()

	require.Eventually(t, func() bool { return isStarting(client) }, time.Second, 5*time.Millisecond)

	err := client.Start(context.Background(), &config.Options{Transport: &mockTransport{}})
	require.ErrorIs(t, err, errors.ErrClientAlreadyConnected)

	closed := make(chan error, 1)

	go func() {
		closed <- client.Close()
	}()

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind Start")
	}

	select {
	case err := <-started:
		require.ErrorIs(t, err, errors.ErrClientClosed)
	case <-time.After(time.Second):
		t.Fatal("Start was not interrupted by Close")
	}

	assert.False(t, client.isConnected())
	assert.Nil(t, client.Transport())
	assert.Equal(t, 1, transport.disposeCount())
}

func TestClient_ReadyAfterCloseDisposesTransport(t *testing.T) {
	gate := make(chan struct{})
	transport := &mockTransport{readyGate: gate}
	client := New()

	started := make(chan error, 1)

	go func() {
		started <- client.Start(context.Background(), &config.Options{Transport: transport})
	}()

	require.Eventually(t, func() bool { return isStarting(client) }, time.Second, 5*time.Millisecond)

	require.NoError(t, client.Close())
	close(gate)

	require.ErrorIs(t, <-started, errors.ErrClientClosed)
	assert.Equal(t, 1, transport.disposeCount())
}

func TestClient_StartMissingKernel(t *testing.T) {
	client := New()

	err := client.Start(context.Background(), &config.Options{
		KernelPath: "/nonexistent/dotnet-interactive",
	})

	_, ok := stderrors.AsType[*errors.KernelNotFoundError](err)
	require.True(t, ok, "got %v", err)
}

func TestClient_StartContextOnlyBoundsReadiness(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	transport := &mockTransport{
		respond: func(m *mockTransport, cmd submittedCommand) {
			m.emit(protocol.EventCommandSucceeded, `{}`, cmd.Token)
		},
	}

	client := New()
	require.NoError(t, client.Start(ctx, &config.Options{Transport: transport}))

	t.Cleanup(func() { _ = client.Close() })

	cancel()

	_, err := client.Execute(context.Background(), map[string]any{}, "RequestKernelInfo")
	require.NoError(t, err)
}

func TestClient_ExecuteCollectsCorrelatedEvents(t *testing.T) {
	transport := &mockTransport{
		respond: func(m *mockTransport, cmd submittedCommand) {
			m.emit("CodeSubmissionReceived", `{}`, cmd.Token)
			m.emit("ReturnValueProduced", `{"value":2}`, "someone-else")
			m.emit(protocol.EventStandardOutputValueProduced, `{}`, cmd.Token+".1")
			m.emit(protocol.EventDiagnosticLogEntryProduced, `{"message":"x"}`, "")
			m.emit(protocol.EventCommandSucceeded, `{}`, cmd.Token+".1")
			m.emit(protocol.EventReturnValueProduced, `{"value":2}`, cmd.Token)
			m.emit(protocol.EventCommandSucceeded, `{}`, cmd.Token)
		},
	}

	client := startClient(t, transport)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.Execute(ctx, map[string]any{"code": "1+1"}, "SubmitCode")
	require.NoError(t, err)

	var types []protocol.EventType
	for _, env := range result.Events {
		types = append(types, env.EventType)
	}

	assert.Equal(t, []protocol.EventType{
		"CodeSubmissionReceived",
		protocol.EventStandardOutputValueProduced,
		protocol.EventCommandSucceeded,
		protocol.EventReturnValueProduced,
		protocol.EventCommandSucceeded,
	}, types)

	terminal := result.Terminal()
	require.NotNil(t, terminal)
	assert.Equal(t, result.Token, terminal.Token())

	require.Len(t, transport.submitted, 1)
	assert.Equal(t, "SubmitCode", transport.submitted[0].CommandType)
	assert.Equal(t, result.Token, transport.submitted[0].Token)
	assert.Len(t, result.Token, 26)

	// The correlation subscription is gone once Execute returns.
	assert.Zero(t, transport.observers.Len())
}

func TestClient_ExecuteCommandFailed(t *testing.T) {
	transport := &mockTransport{
		respond: func(m *mockTransport, cmd submittedCommand) {
			m.emit(protocol.EventCommandFailed, `{"message":"(1,1): error CS0103"}`, cmd.Token)
		},
	}

	client := startClient(t, transport)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.Execute(ctx, map[string]any{"code": "nope"}, "SubmitCode")
	require.ErrorIs(t, err, errors.ErrCommandFailed)

	failed, ok := stderrors.AsType[*errors.CommandFailedError](err)
	require.True(t, ok)
	assert.Equal(t, "(1,1): error CS0103", failed.Message)
	assert.Equal(t, result.Token, failed.Token)
	require.Len(t, result.Events, 1)
}

func TestClient_ExecuteSubmitError(t *testing.T) {
	transport := &mockTransport{submitErr: errors.ErrProcessNotRunning}

	client := startClient(t, transport)

	_, err := client.Execute(context.Background(), map[string]any{}, "SubmitCode")
	require.ErrorIs(t, err, errors.ErrProcessNotRunning)
}

func TestClient_ExecuteContextDeadline(t *testing.T) {
	client := startClient(t, &mockTransport{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := client.Execute(ctx, map[string]any{}, "SubmitCode")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, result.Terminal())
}

func TestClient_ExecuteUnblockedByClose(t *testing.T) {
	client := startClient(t, &mockTransport{})

	errCh := make(chan error, 1)

	go func() {
		_, err := client.Execute(context.Background(), map[string]any{}, "SubmitCode")
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, client.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, errors.ErrClientClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Execute did not return after Close")
	}
}

func TestClient_ExecuteConcurrentCommands(t *testing.T) {
	transport := &mockTransport{
		respond: func(m *mockTransport, cmd submittedCommand) {
			m.emit(protocol.EventReturnValueProduced, `{}`, cmd.Token)
			m.emit(protocol.EventCommandSucceeded, `{}`, cmd.Token)
		},
	}

	client := startClient(t, transport)

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			result, err := client.Execute(ctx, map[string]any{"i": i}, fmt.Sprintf("Cmd%d", i))
			assert.NoError(t, err)
			assert.Len(t, result.Events, 2)
		})
	}

	wg.Wait()
}

func TestClient_ExecuteNotConnected(t *testing.T) {
	_, err := New().Execute(context.Background(), nil, "SubmitCode")
	require.ErrorIs(t, err, errors.ErrClientNotConnected)
}

func TestClient_Events(t *testing.T) {
	transport := &mockTransport{}
	client := startClient(t, transport)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan []protocol.EventType, 1)
	subscribed := make(chan struct{})

	go func() {
		var types []protocol.EventType

		close(subscribed)

		for env := range client.Events(ctx) {
			types = append(types, env.EventType)
			if len(types) == 2 {
				break
			}
		}

		received <- types
	}()

	<-subscribed
	require.Eventually(t, func() bool { return transport.observers.Len() == 1 }, time.Second, time.Millisecond)

	transport.emit(protocol.EventKernelReady, `{}`, "")
	transport.emit(protocol.EventDisplayedValueProduced, `{}`, "tok")

	select {
	case types := <-received:
		assert.Equal(t, []protocol.EventType{protocol.EventKernelReady, protocol.EventDisplayedValueProduced}, types)
	case <-ctx.Done():
		t.Fatal("timed out waiting for events")
	}

	require.Eventually(t, func() bool { return transport.observers.Len() == 0 }, time.Second, time.Millisecond)
}

func TestClient_EventsStopsOnClose(t *testing.T) {
	client := startClient(t, &mockTransport{})

	done := make(chan struct{})

	go func() {
		defer close(done)

		for range client.Events(context.Background()) {
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, client.Close())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Events did not stop after Close")
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	transport := &mockTransport{}
	client := startClient(t, transport)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	assert.False(t, client.isConnected())
	assert.Equal(t, 1, transport.disposeCount())
}

func TestClient_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	transport := &mockTransport{
		respond: func(m *mockTransport, cmd submittedCommand) {
			if cmd.CommandType == "Fail" {
				m.emit(protocol.EventCommandFailed, `{"message":"nope"}`, cmd.Token)

				return
			}

			m.emit(protocol.EventCommandSucceeded, `{}`, cmd.Token)
		},
	}

	client := New()
	require.NoError(t, client.Start(context.Background(), &config.Options{
		Transport:      transport,
		TracerProvider: tp,
	}))

	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Execute(ctx, map[string]any{}, "SubmitCode")
	require.NoError(t, err)

	_, err = client.Execute(ctx, map[string]any{}, "Fail")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "kernel.start", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("kernel.http_port", 4242))
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	assert.Equal(t, "kernel.execute", spans[1].Name())
	assert.Contains(t, spans[1].Attributes(), attribute.String("kernel.command_type", "SubmitCode"))
	assert.Contains(t, spans[1].Attributes(), attribute.Int("kernel.events", 1))
	assert.Equal(t, codes.Ok, spans[1].Status().Code)

	assert.Equal(t, "kernel.execute", spans[2].Name())
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}
