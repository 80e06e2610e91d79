package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/grads-sdk-go/internal/config"
	"github.com/wagiedev/grads-sdk-go/internal/errors"
	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
	"github.com/wagiedev/grads-sdk-go/internal/tracing"
)

const (
	// TokenPrefix starts every boundary token.
	TokenPrefix = "__GA_BOUNDARY_"
	tokenSuffix = "__"

	// maxPendingLines caps one response. Further lines are dropped and counted.
	maxPendingLines = 1 << 20

	// exitGracePeriod bounds the wait for the exit status after stdout EOF.
	exitGracePeriod = 2 * time.Second
)

// waiter is the caller currently blocked on a boundary.
type waiter struct {
	token  string
	result chan []string
}

// Channel serializes commands to the engine and frames their output with
// boundary markers.
type Channel struct {
	log       *slog.Logger
	transport config.Transport
	template  string
	timeout   time.Duration
	echo      io.Writer

	// sem is a one-slot semaphore; blocked senders are served in arrival order.
	sem chan struct{}

	mu      sync.Mutex // Protects waiter, pending and dropped
	waiter  *waiter
	pending []string
	dropped int

	errMu    sync.RWMutex
	fatalErr error

	startOnce sync.Once
	pumpDone  chan struct{}
}

// NewChannel creates a channel over a started transport. Call Start before
// the first Execute.
func NewChannel(log *slog.Logger, transport config.Transport, options *config.Options) *Channel {
	template := options.BoundaryCommand
	if template == "" {
		template = config.DefaultBoundaryCommand
	}

	var echo io.Writer
	if options.Echo {
		echo = options.EchoWriter
		if echo == nil {
			echo = os.Stdout
		}
	}

	return &Channel{
		log:       log.With("component", "channel"),
		transport: transport,
		template:  template,
		timeout:   options.CommandTimeout,
		echo:      echo,
		sem:       make(chan struct{}, 1),
		pumpDone:  make(chan struct{}),
	}
}

// Start launches the pump goroutine. It's safe to call Start multiple times.
func (c *Channel) Start() {
	c.startOnce.Do(func() {
		go c.pump()
	})
}

// SetFatalError marks the channel dead. The first error wins; every later
// Execute returns it without touching the engine.
func (c *Channel) SetFatalError(err error) {
	if err == nil {
		return
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}
}

// Err returns the error that ended the channel, or nil while it is usable.
func (c *Channel) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done is closed once the engine's stdout has reached EOF.
func (c *Channel) Done() <-chan struct{} {
	return c.pumpDone
}

// Execute sends text to the engine and returns the lines it printed in
// response. Multi-line text is sent one line per command; blank lines are
// skipped. One boundary marker closes the whole batch.
//
// Cancelling ctx abandons the wait without harming the channel: the late
// response is discarded when its stale marker arrives. A batch whose first
// line was written is always written in full. Exceeding the command
// timeout, while writing or waiting, is fatal and kills the engine.
func (c *Channel) Execute(ctx context.Context, text string) (*linebuf.Output, error) {
	commands := SplitCommands(text)

	ctx, span := tracing.StartSpan(ctx, "grads.execute")
	span.WithAttributes(map[string]string{"grads.command": summarize(commands)})
	span.WithInt("grads.commands", len(commands))

	out, err := c.execute(ctx, commands)

	span.WithInt("grads.lines", out.LineCount())
	tracing.EndSpan(span, err)

	return out, err
}

func (c *Channel) execute(ctx context.Context, commands []string) (*linebuf.Output, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	// A fatal error may have been recorded while this call was queued.
	if err := c.Err(); err != nil {
		return nil, err
	}

	// Nothing has been written yet, so an ended context leaves the channel
	// untouched.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token := TokenPrefix + ulid.Make().String() + tokenSuffix
	w := &waiter{token: token, result: make(chan []string, 1)}

	c.mu.Lock()
	c.pending = nil
	c.dropped = 0
	c.waiter = w
	c.mu.Unlock()

	c.log.Debug("Executing commands", "commands", commands, "token", token)

	// Once the batch starts it is written whole, marker included, so framing
	// survives cancellation. Only the command timeout can cut a write short.
	sendCtx := context.WithoutCancel(ctx)

	var expired <-chan struct{}

	if c.timeout > 0 {
		var cancel context.CancelFunc

		sendCtx, cancel = context.WithTimeout(sendCtx, c.timeout)
		defer cancel()

		expired = sendCtx.Done()
	}

	for _, command := range append(commands, fmt.Sprintf(c.template, token)) {
		if err := c.transport.SendLine(sendCtx, command); err != nil {
			c.clearWaiter(w)

			if sendCtx.Err() != nil {
				return nil, c.timedOut(commands)
			}

			crash := c.crashError(fmt.Errorf("send %q: %w", command, err))
			c.SetFatalError(crash)

			return nil, c.Err()
		}
	}

	return c.wait(ctx, w, commands, expired)
}

// wait blocks until the marker arrives. expired fires when the command
// timeout, counted from the first write, runs out.
func (c *Channel) wait(ctx context.Context, w *waiter, commands []string, expired <-chan struct{}) (*linebuf.Output, error) {
	select {
	case lines := <-w.result:
		return c.deliver(lines), nil

	case <-c.pumpDone:
		// The boundary may have been delivered just before EOF.
		select {
		case lines := <-w.result:
			return c.deliver(lines), nil
		default:
		}

		c.clearWaiter(w)
		c.SetFatalError(c.crashError(io.ErrUnexpectedEOF))

		return nil, c.Err()

	case <-expired:
		c.clearWaiter(w)

		return nil, c.timedOut(commands)

	case <-ctx.Done():
		c.clearWaiter(w)
		c.log.Debug("Execute cancelled, response will be discarded", "token", w.token)

		return nil, ctx.Err()
	}
}

// timedOut records a command timeout and kills the engine.
func (c *Channel) timedOut(commands []string) error {
	c.log.Error("Command timed out, killing engine", "timeout", c.timeout, "commands", commands)
	c.SetFatalError(&errors.CommandTimeoutError{Command: summarize(commands), Timeout: c.timeout})

	if err := c.transport.Kill(); err != nil {
		c.log.Debug("Kill after timeout failed", "error", err)
	}

	return c.Err()
}

func (c *Channel) deliver(lines []string) *linebuf.Output {
	c.mu.Lock()
	dropped := c.dropped
	c.mu.Unlock()

	if dropped > 0 {
		c.log.Warn("Response exceeded line limit, lines dropped", "limit", maxPendingLines, "dropped", dropped)
	}

	c.log.Debug("Received response", "line_count", len(lines))

	return linebuf.New(lines)
}

// crashError waits briefly for the engine's exit status and wraps it.
func (c *Channel) crashError(cause error) error {
	select {
	case <-c.transport.Done():
	case <-time.After(exitGracePeriod):
	}

	if err := c.transport.ExitError(); err != nil {
		if _, ok := stderrors.AsType[*errors.EngineCrashError](err); ok {
			return err
		}

		return &errors.EngineCrashError{ExitCode: -1, Err: err}
	}

	return &errors.EngineCrashError{ExitCode: -1, Err: cause}
}

func (c *Channel) clearWaiter(w *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.waiter == w {
		c.waiter = nil
		c.pending = nil
	}
}

// pump drains stdout until EOF. It never blocks on a caller.
func (c *Channel) pump() {
	defer close(c.pumpDone)
	defer c.log.Debug("Channel pump stopped")

	for line := range c.transport.Lines() {
		c.route(line)
	}
}

func (c *Channel) route(line string) {
	trimmed := strings.TrimSpace(line)

	c.mu.Lock()
	defer c.mu.Unlock()

	if w := c.waiter; w != nil && trimmed == w.token {
		lines := c.pending
		c.pending = nil
		c.waiter = nil
		w.result <- lines

		return
	}

	if strings.Contains(line, TokenPrefix) {
		if IsMarker(trimmed) {
			// Boundary of an abandoned call: everything before it belongs
			// to that call.
			c.log.Debug("Discarding output of abandoned command", "token", trimmed, "line_count", len(c.pending))
			c.pending = nil
		}

		return
	}

	if c.echo != nil {
		_, _ = fmt.Fprintln(c.echo, line)
	}

	if c.waiter == nil {
		c.log.Debug("Dropping unsolicited output", "line", line)

		return
	}

	if len(c.pending) >= maxPendingLines {
		c.dropped++

		return
	}

	c.pending = append(c.pending, line)
}

// IsMarker reports whether s is a whole boundary token.
func IsMarker(s string) bool {
	if !strings.HasPrefix(s, TokenPrefix) || !strings.HasSuffix(s, tokenSuffix) {
		return false
	}

	id := strings.TrimSuffix(strings.TrimPrefix(s, TokenPrefix), tokenSuffix)
	_, err := ulid.ParseStrict(id)

	return err == nil
}

// SplitCommands splits text into the non-blank command lines it contains.
func SplitCommands(text string) []string {
	var commands []string

	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		commands = append(commands, line)
	}

	return commands
}

func summarize(commands []string) string {
	return strings.Join(commands, "; ")
}
