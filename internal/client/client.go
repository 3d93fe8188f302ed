package client

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/kernelhost-go/internal/cli"
	"github.com/wagiedev/kernelhost-go/internal/config"
	"github.com/wagiedev/kernelhost-go/internal/errors"
	"github.com/wagiedev/kernelhost-go/internal/protocol"
	"github.com/wagiedev/kernelhost-go/internal/subprocess"
)

const (
	// defaultEventBufferSize is the buffer size of each Events stream.
	defaultEventBufferSize = 64

	tracerName = "github.com/wagiedev/kernelhost-go/client"
)

// Result holds every event the kernel produced for one command, in arrival
// order, including events of child commands and the terminal event.
type Result struct {
	Token  string
	Events []*protocol.EventEnvelope
}

// Terminal returns the CommandSucceeded or CommandFailed event that
// completed the command, or nil if none was received.
func (r *Result) Terminal() *protocol.EventEnvelope {
	for i := len(r.Events) - 1; i >= 0; i-- {
		env := r.Events[i]
		if env.Token() != r.Token {
			continue
		}

		switch env.EventType {
		case protocol.EventCommandSucceeded, protocol.EventCommandFailed:
			return env
		}
	}

	return nil
}

// Client correlates submitted commands with the events the kernel produces
// for them.
type Client struct {
	log       *slog.Logger
	tracer    trace.Tracer
	transport config.Transport

	mu        sync.Mutex
	done      chan struct{}
	starting  bool
	connected bool
	closed    bool
	closeOnce sync.Once
}

// New creates a new client.
//
// The client is not connected after creation. Call Start() with options to connect.
func New() *Client {
	return &Client{
		done: make(chan struct{}),
	}
}

// isConnected returns true if the client is connected.
// This method is safe to call from any goroutine.
func (c *Client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connected
}

// Start connects to a kernel and waits until it reports readiness.
//
// If options.Transport is set it is used as is, otherwise the kernel
// executable is discovered and spawned. ctx only bounds the wait for
// readiness; the kernel keeps running after ctx ends until Close. A Close
// from another goroutine interrupts a Start that is still waiting, and Start
// then returns ErrClientClosed.
//
// Returns KernelNotFoundError if the executable cannot be located, or the
// readiness error of the transport.
func (c *Client) Start(ctx context.Context, options *config.Options) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return errors.ErrClientClosed
	}

	if c.connected || c.starting {
		c.mu.Unlock()

		return errors.ErrClientAlreadyConnected
	}

	c.starting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	options, err := options.Resolve()
	if err != nil {
		return fmt.Errorf("resolve options: %w", err)
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tp := options.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	tracer := tp.Tracer(tracerName)

	ctx, span := tracer.Start(ctx, "kernel.start")
	defer span.End()

	err = c.connect(ctx, log, tracer, options)
	recordError(span, err)

	return err
}

// connect spawns or adopts the transport, waits for readiness and publishes
// the connection. Close interrupts the wait.
func (c *Client) connect(
	ctx context.Context,
	log *slog.Logger,
	tracer trace.Tracer,
	options *config.Options,
) error {
	clog := log.With("component", "client")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	transport := options.Transport
	if transport != nil {
		clog.Debug("Using injected custom transport")
	} else {
		t, err := c.spawn(ctx, log, options)
		if err != nil {
			return c.closedOr(err)
		}

		transport = t
	}

	clog.Info("Waiting for kernel readiness")

	if err := transport.WaitForReady(ctx); err != nil {
		if disposeErr := transport.Dispose(); disposeErr != nil {
			clog.Debug("Dispose after failed start", "error", disposeErr)
		}

		return c.closedOr(fmt.Errorf("wait for kernel: %w", err))
	}

	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		if disposeErr := transport.Dispose(); disposeErr != nil {
			clog.Debug("Dispose after close during start", "error", disposeErr)
		}

		return errors.ErrClientClosed
	}

	c.log = clog
	c.tracer = tracer
	c.transport = transport
	c.connected = true
	c.mu.Unlock()

	clog.Info("Client started successfully", "http_port", transport.HTTPPort())

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("kernel.http_port", transport.HTTPPort()))

	return nil
}

// closedOr returns ErrClientClosed if the client was closed, err otherwise.
func (c *Client) closedOr(err error) error {
	select {
	case <-c.done:
		return errors.ErrClientClosed
	default:
		return err
	}
}

// spawn discovers the kernel executable and starts it.
func (c *Client) spawn(
	ctx context.Context,
	log *slog.Logger,
	options *config.Options,
) (*subprocess.KernelTransport, error) {
	kernelPath := options.KernelPath

	if !options.SkipDiscovery {
		discoverer := cli.NewDiscoverer(&cli.Config{
			KernelPath: options.KernelPath,
			Logger:     log,
		})

		path, err := discoverer.Discover(ctx)
		if err != nil {
			return nil, err
		}

		kernelPath = path
	}

	return subprocess.NewKernelTransport(log, cli.BuildStartInfo(kernelPath, options), options), nil
}

// Transport returns the connected transport, or nil before Start.
func (c *Client) Transport() config.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transport
}

// Execute submits a command and waits for its terminal event.
//
// Every event carrying the command's token, or a child token derived from
// it, is collected. Execute returns when the kernel reports CommandSucceeded
// for the command. On CommandFailed it returns the collected events together
// with a CommandFailedError. If the kernel never completes the command,
// Execute blocks until ctx is done or the client is closed.
func (c *Client) Execute(ctx context.Context, command any, commandType string) (*Result, error) {
	if !c.isConnected() {
		return nil, errors.ErrClientNotConnected
	}

	token := protocol.NewToken()
	log := c.log.With("token", token, "command_type", commandType)

	ctx, span := c.tracer.Start(ctx, "kernel.execute", trace.WithAttributes(
		attribute.String("kernel.command_type", commandType),
		attribute.String("kernel.token", token),
	))
	defer span.End()

	result, err := c.execute(ctx, log, command, commandType, token)

	span.SetAttributes(attribute.Int("kernel.events", len(result.Events)))
	recordError(span, err)

	return result, err
}

// execute submits the command and collects its events.
func (c *Client) execute(
	ctx context.Context,
	log *slog.Logger,
	command any,
	commandType string,
	token string,
) (*Result, error) {
	var (
		mu     sync.Mutex
		events []*protocol.EventEnvelope
	)

	terminal := make(chan *protocol.EventEnvelope, 1)

	sub := c.transport.SubscribeToKernelEvents(func(env *protocol.EventEnvelope) {
		eventToken := env.Token()
		if !protocol.TokenMatches(token, eventToken) {
			return
		}

		mu.Lock()
		events = append(events, env)
		mu.Unlock()

		// Child commands complete on their own; only the root token ends Execute
		if eventToken != token {
			return
		}

		switch env.EventType {
		case protocol.EventCommandSucceeded, protocol.EventCommandFailed:
			select {
			case terminal <- env:
			default:
			}
		}
	})
	defer sub.Dispose()

	log.Debug("Executing command")

	var final *protocol.EventEnvelope

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := c.transport.SubmitCommand(egCtx, command, commandType, token); err != nil {
			return fmt.Errorf("submit %s: %w", commandType, err)
		}

		return nil
	})

	eg.Go(func() error {
		select {
		case final = <-terminal:
			return nil
		case <-c.done:
			return errors.ErrClientClosed
		case <-egCtx.Done():
			return egCtx.Err()
		}
	})

	err := eg.Wait()

	mu.Lock()
	result := &Result{Token: token, Events: append([]*protocol.EventEnvelope(nil), events...)}
	mu.Unlock()

	if err != nil {
		log.Debug("Command did not complete", "error", err)

		return result, err
	}

	if final.EventType == protocol.EventCommandFailed {
		log.Debug("Command failed", "message", final.Message())

		return result, &errors.CommandFailedError{Token: token, Message: final.Message()}
	}

	log.Debug("Command succeeded", "events", len(result.Events))

	return result, nil
}

// Events returns an iterator over every event the kernel produces after
// the call, until ctx is done, the client is closed, or the caller stops
// iterating.
//
// Events are buffered; a consumer that falls behind the buffer stalls the
// transport's reader until it catches up.
func (c *Client) Events(ctx context.Context) iter.Seq[*protocol.EventEnvelope] {
	return func(yield func(*protocol.EventEnvelope) bool) {
		if !c.isConnected() {
			return
		}

		stop := make(chan struct{})
		events := make(chan *protocol.EventEnvelope, defaultEventBufferSize)

		sub := c.transport.SubscribeToKernelEvents(func(env *protocol.EventEnvelope) {
			select {
			case events <- env:
			case <-stop:
			case <-c.done:
			case <-ctx.Done():
			}
		})

		defer func() {
			sub.Dispose()
			close(stop)
		}()

		for {
			select {
			case env := <-events:
				if !yield(env) {
					return
				}
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// recordError marks the span as failed when err is non-nil.
func recordError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")

		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Close disposes the transport and releases the client.
// Safe to call multiple times.
func (c *Client) Close() error {
	var closeErr error

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.connected = false
		transport := c.transport
		log := c.log
		c.mu.Unlock()

		close(c.done)

		if transport == nil {
			return
		}

		log.Info("Closing client")

		if err := transport.Dispose(); err != nil {
			closeErr = fmt.Errorf("dispose transport: %w", err)
		}
	})

	return closeErr
}
