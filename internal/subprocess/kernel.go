package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/kernelhost-go/internal/cli"
	"github.com/wagiedev/kernelhost-go/internal/config"
	"github.com/wagiedev/kernelhost-go/internal/errors"
	"github.com/wagiedev/kernelhost-go/internal/linereader"
	"github.com/wagiedev/kernelhost-go/internal/observer"
	"github.com/wagiedev/kernelhost-go/internal/port"
	"github.com/wagiedev/kernelhost-go/internal/protocol"
)

// maxStderrTailSize is how much stderr is retained for exit errors.
// Stderr is streamed to the diagnostic sink in full, but the retained copy
// stops growing after this limit.
const maxStderrTailSize = 64 * 1024

// pipeDrainDelay bounds how long output is drained after the kernel exits.
// A descendant that inherited stdout or stderr can keep the pipes open
// indefinitely; after this delay the host closes its read ends.
const pipeDrainDelay = 5 * time.Second

// Status is the lifecycle state of the kernel process.
type Status int32

const (
	// StatusNotStarted means the process has not been spawned yet.
	StatusNotStarted Status = iota
	// StatusRunning means the process is alive and accepting input.
	StatusRunning
	// StatusTerminated means the process exited, was killed, or never
	// started because startup failed.
	StatusTerminated
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusRunning:
		return "running"
	case StatusTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// KernelTransport implements Transport by spawning a kernel subprocess.
type KernelTransport struct {
	log         *slog.Logger
	diagnostics func(string)
	allocator   port.Allocator
	maxLineSize int
	drainDelay  time.Duration

	observers observer.Set[*protocol.EventEnvelope]
	ready     *readySignal
	readySub  *observer.Subscription

	// ctx is cancelled by Dispose to abandon an in-flight startup.
	ctx    context.Context
	cancel context.CancelFunc

	status   atomic.Int32
	httpPort atomic.Int32
	pid      atomic.Int32

	mu          sync.Mutex // Protects cmd, stdin, stdinClosed, disposed
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdinClosed bool
	disposed    bool

	writeMu sync.Mutex // Serializes stdin writes

	stderrMu   sync.Mutex
	stderrTail strings.Builder

	exited chan struct{}
}

// Compile-time verification that KernelTransport implements the Transport interface.
var _ config.Transport = (*KernelTransport)(nil)

// NewKernelTransport creates a transport and starts the kernel in the
// background. It never blocks: argument negotiation, spawning and stream
// wiring happen on a separate goroutine, and the outcome is observed through
// WaitForReady.
//
// The readiness observer is registered before the process is spawned, so a
// KernelReady event can never be missed.
//
// The logger is used for operation tracking and debugging. Human-readable
// process notices, kernel stderr and kernel diagnostic log entries go to
// options.Diagnostics.
func NewKernelTransport(
	log *slog.Logger,
	info *config.StartInfo,
	options *config.Options,
) *KernelTransport {
	t := newKernelTransport(log, options)

	go t.start(info)

	return t
}

// newKernelTransport builds the transport and registers the readiness
// observer without starting the kernel.
func newKernelTransport(log *slog.Logger, options *config.Options) *KernelTransport {
	if options == nil {
		options = &config.Options{}
	}

	log = log.With("component", "kernel_transport")

	allocator := options.PortAllocator
	if allocator == nil {
		allocator = port.NewLoopbackAllocator(log)
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &KernelTransport{
		log:         log,
		diagnostics: options.Diagnostics,
		allocator:   allocator,
		maxLineSize: options.MaxLineSize,
		drainDelay:  pipeDrainDelay,
		ready:       newReadySignal(),
		ctx:         ctx,
		cancel:      cancel,
		exited:      make(chan struct{}),
	}

	t.readySub = t.observers.Subscribe(func(env *protocol.EventEnvelope) {
		if env.Kind() != protocol.KindReady {
			return
		}

		t.readySub.Dispose()

		if t.ready.resolve(nil) {
			t.log.Info("Kernel ready", "pid", t.PID())
		}
	})

	return t
}

// start negotiates arguments, spawns the process and wires its streams.
func (t *KernelTransport) start(info *config.StartInfo) {
	t.log.Info("Starting kernel subprocess", "command", info.Command)

	args, httpPort, err := cli.ConfigureHTTPArgs(t.ctx, info.Args, t.allocator, t.diag)
	if err != nil {
		t.log.Error("Failed to configure kernel arguments", "error", err)
		t.fail(err)

		return
	}

	t.httpPort.Store(int32(httpPort))
	t.log.Debug("Configured kernel arguments", "args", args, "http_port", httpPort)

	//nolint:gosec // G204: Subprocess launching with dynamic args is expected for kernel invocation
	cmd := exec.Command(info.Command, args...)
	cmd.Dir = info.WorkingDirectory

	if len(info.Env) > 0 {
		cmd.Env = append(os.Environ(), info.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.fail(&errors.ProcessStartError{Err: fmt.Errorf("stdin pipe: %w", err)})

		return
	}

	// Output pipes are owned here rather than by cmd, so that cmd.Wait
	// returns when the kernel exits even if a descendant still holds them.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		closeAll(stdin)
		t.fail(&errors.ProcessStartError{Err: fmt.Errorf("stdout pipe: %w", err)})

		return
	}

	stderr, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdin, stdout, stdoutW)
		t.fail(&errors.ProcessStartError{Err: fmt.Errorf("stderr pipe: %w", err)})

		return
	}

	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	t.mu.Lock()

	if t.disposed {
		t.mu.Unlock()
		closeAll(stdin, stdout, stdoutW, stderr, stderrW)
		t.log.Debug("Transport disposed before kernel spawn")
		t.fail(errors.ErrTransportDisposed)

		return
	}

	if err := cmd.Start(); err != nil {
		t.mu.Unlock()
		closeAll(stdout, stdoutW, stderr, stderrW)
		t.log.Error("Failed to start kernel process", "error", err)
		t.fail(&errors.ProcessStartError{Err: fmt.Errorf("start process: %w", err)})

		return
	}

	pid := cmd.Process.Pid

	t.cmd = cmd
	t.stdin = stdin
	t.pid.Store(int32(pid))
	t.status.Store(int32(StatusRunning))
	t.mu.Unlock()

	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)

	t.log.Info("Kernel subprocess started successfully", "pid", pid)
	t.diag(fmt.Sprintf("Kernel process %d started: %s %s", pid, info.Command, strings.Join(args, " ")))

	reader := linereader.New(t.maxLineSize)
	reader.Subscribe(t.handleLine)

	var eg errgroup.Group

	eg.Go(func() error {
		_, err := reader.Pump(stdout, func(err error) {
			t.log.Warn("Dropped oversized kernel output line", "error", err)
			t.diag(fmt.Sprintf("Kernel (%d) output line dropped: %v", pid, err))
		})

		return err
	})

	eg.Go(func() error {
		return t.pumpStderr(pid, stderr)
	})

	go t.waitForExit(cmd, &eg, stdout, stderr)
}

// closeAll closes pipe ends, ignoring errors from ends already closed.
func closeAll(closers ...io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

// fail settles a startup failure.
func (t *KernelTransport) fail(err error) {
	t.status.Store(int32(StatusTerminated))
	t.ready.resolve(err)
	t.readySub.Dispose()
	close(t.exited)
}

// pumpStderr forwards kernel stderr to the diagnostic sink, line by line,
// keeping a bounded tail for exit errors.
func (t *KernelTransport) pumpStderr(pid int, stderr io.Reader) error {
	reader := linereader.New(t.maxLineSize)
	reader.Subscribe(func(line string) {
		t.stderrMu.Lock()

		if t.stderrTail.Len() < maxStderrTailSize {
			if t.stderrTail.Len() > 0 {
				t.stderrTail.WriteString("\n")
			}

			t.stderrTail.WriteString(line)
		}

		t.stderrMu.Unlock()

		t.diag(fmt.Sprintf("kernel (%d) stderr: %s", pid, line))
	})

	_, err := reader.Pump(stderr, func(err error) {
		t.log.Debug("Dropped oversized kernel stderr line", "error", err)
	})

	return err
}

// waitForExit reaps the process, then lets both pumps drain for up to
// drainDelay before closing the read ends of the output pipes.
func (t *KernelTransport) waitForExit(cmd *exec.Cmd, eg *errgroup.Group, outputs ...io.Closer) {
	defer close(t.exited)

	waitErr := cmd.Wait()

	drained := make(chan error, 1)

	go func() {
		drained <- eg.Wait()
	}()

	var pumpErr error

	select {
	case pumpErr = <-drained:
	case <-time.After(t.drainDelay):
		t.log.Warn("Kernel output still open after exit, closing pipes", "pid", t.PID(), "delay", t.drainDelay)
		closeAll(outputs...)

		pumpErr = <-drained
	}

	closeAll(outputs...)

	if pumpErr != nil {
		// Pipes report errors once they are closed under the pumps
		t.log.Debug("Kernel stream pump stopped with error", "error", pumpErr)
	}

	t.status.Store(int32(StatusTerminated))
	t.readySub.Dispose()

	exitCode, signal := exitStatus(cmd.ProcessState, waitErr)
	pid := t.PID()

	var notice string

	switch {
	case signal != "":
		notice = fmt.Sprintf("Kernel process %d terminated by signal %s", pid, signal)
	case exitCode >= 0:
		notice = fmt.Sprintf("Kernel process %d exited with code %d", pid, exitCode)
	default:
		notice = fmt.Sprintf("Kernel process %d exited", pid)
	}

	t.log.Info("Kernel process exited", "pid", pid, "exit_code", exitCode, "signal", signal)
	t.diag(notice)

	t.stderrMu.Lock()
	stderrOutput := strings.TrimSpace(t.stderrTail.String())
	t.stderrMu.Unlock()

	if t.ready.resolve(&errors.KernelExitedError{
		ExitCode: exitCode,
		Signal:   signal,
		Stderr:   stderrOutput,
	}) {
		t.log.Warn("Kernel exited before it was ready", "pid", pid, "exit_code", exitCode)
	}
}

// exitStatus extracts the exit code and terminating signal name. The exit
// code is -1 when unknown or when the process was killed by a signal.
func exitStatus(state *os.ProcessState, waitErr error) (int, string) {
	if state == nil {
		if exitErr, ok := stderrors.AsType[*exec.ExitError](waitErr); ok {
			state = exitErr.ProcessState
		}
	}

	if state == nil {
		return -1, ""
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, ws.Signal().String()
	}

	return state.ExitCode(), ""
}

// handleLine decodes one line of kernel output and delivers it.
//
// Diagnostic log entries are forwarded to the diagnostic sink and still
// delivered to observers. Malformed lines are logged and dropped.
func (t *KernelTransport) handleLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	env, err := protocol.DecodeEvent([]byte(line))
	if err != nil {
		t.log.Warn("Dropped malformed kernel output", "error", err, "line", line)
		t.diag("Unable to parse kernel output: " + line)

		return
	}

	switch env.Kind() {
	case protocol.KindDiagnostic:
		t.diag(env.Message())
	case protocol.KindReady, protocol.KindOther:
	}

	t.observers.Notify(env)
}

// diag appends one line to the diagnostic sink.
func (t *KernelTransport) diag(line string) {
	t.log.Debug("Kernel diagnostic", "line", line)

	if t.diagnostics != nil {
		t.diagnostics(line)
	}
}

// WaitForReady blocks until the kernel reports KernelReady.
//
// Returns nil once ready. Returns the startup error if the kernel could not
// be started, KernelExitedError if it exited first, ErrTransportDisposed if
// the transport was disposed first, or ctx.Err().
func (t *KernelTransport) WaitForReady(ctx context.Context) error {
	return t.ready.wait(ctx)
}

// IsReady reports whether the kernel has reported readiness.
func (t *KernelTransport) IsReady() bool {
	return t.ready.settled() && t.ready.err == nil
}

// SubscribeToKernelEvents registers fn for every event envelope.
//
// Observers run on the transport's reader goroutine, in stream order. A slow
// observer delays every later event.
func (t *KernelTransport) SubscribeToKernelEvents(fn func(*protocol.EventEnvelope)) *observer.Subscription {
	return t.observers.Subscribe(fn)
}

// SubmitCommand writes a command envelope to the kernel's stdin.
//
// An empty token is replaced with a generated one. This method is safe for
// concurrent use and respects context cancellation even during blocking
// writes. If the context is cancelled during a blocked write, stdin is closed
// to unblock it and later calls return ErrStdinClosed.
//
// Returns ErrProcessNotRunning unless the process is running, and
// ErrTransportDisposed after Dispose.
func (t *KernelTransport) SubmitCommand(
	ctx context.Context,
	command any,
	commandType string,
	token string,
) error {
	if token == "" {
		token = protocol.NewToken()
	}

	data, err := protocol.EncodeCommand(&protocol.CommandEnvelope{
		Token:       token,
		CommandType: commandType,
		Command:     command,
	})
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	stdin := t.stdin
	stdinClosed := t.stdinClosed
	disposed := t.disposed
	t.mu.Unlock()

	if disposed {
		return errors.ErrTransportDisposed
	}

	if t.Status() != StatusRunning || stdin == nil {
		return errors.ErrProcessNotRunning
	}

	if stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	t.log.Debug("Submitting command", "command_type", commandType, "token", token)

	done := make(chan error, 1)

	go func() {
		_, err := stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write command to kernel", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		t.mu.Lock()
		_ = stdin.Close()
		t.stdinClosed = true
		t.mu.Unlock()

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// HTTPPort returns the negotiated HTTP side-channel port, or 0 before
// negotiation has completed.
func (t *KernelTransport) HTTPPort() int {
	return int(t.httpPort.Load())
}

// PID returns the kernel process id, or 0 before spawn.
func (t *KernelTransport) PID() int {
	return int(t.pid.Load())
}

// Status returns the lifecycle state of the kernel process.
func (t *KernelTransport) Status() Status {
	return Status(t.status.Load())
}

// Exited returns a channel that is closed once the kernel process has been
// reaped, or startup has failed.
func (t *KernelTransport) Exited() <-chan struct{} {
	return t.exited
}

// Dispose terminates the kernel process.
//
// This forcefully kills the process. A readiness wait still pending is
// released with ErrTransportDisposed. Registered observers are left in place.
// It's safe to call Dispose multiple times or on a process that has exited.
func (t *KernelTransport) Dispose() error {
	t.mu.Lock()

	if t.disposed {
		t.mu.Unlock()

		return nil
	}

	t.disposed = true
	t.stdinClosed = true
	cmd := t.cmd
	t.mu.Unlock()

	t.cancel()

	if t.ready.resolve(errors.ErrTransportDisposed) {
		t.log.Debug("Readiness abandoned by dispose")
	}

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	t.log.Debug("Killing kernel process", "pid", cmd.Process.Pid)

	if err := cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill kernel process (pid %d): %w", cmd.Process.Pid, err)
	}

	return nil
}
