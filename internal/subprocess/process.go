package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/grads-sdk-go/internal/config"
	"github.com/wagiedev/grads-sdk-go/internal/engine"
	"github.com/wagiedev/grads-sdk-go/internal/errors"
)

const (
	// maxScanTokenSize is the maximum length of one engine output line.
	maxScanTokenSize = 1024 * 1024 // 1MB
	// maxStderrBufferSize is the maximum size for the stderr buffer.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit to prevent unbounded memory usage.
	maxStderrBufferSize = 10 * 1024 * 1024 // 10MB
	// linesBufferSize is the capacity of the stdout line channel.
	linesBufferSize = 256
	// writeAbandonTimeout bounds the wait for a blocked write after stdin is closed.
	writeAbandonTimeout = time.Second
)

// Process implements config.Transport by spawning the engine binary.
type Process struct {
	log            *slog.Logger
	options        *config.Options
	binPath        string
	args           []string
	cmd            *exec.Cmd
	stdin          io.WriteCloser
	stdout         io.ReadCloser
	stderr         io.ReadCloser
	stderrCallback func(string)

	lines chan string
	done  chan struct{}

	stderrMu     sync.Mutex
	stderrBuffer strings.Builder

	// writeSem serializes stdin writes. It is separate from mu so a blocked
	// write never holds up Pid, Kill or Terminate.
	writeSem chan struct{}

	mu          sync.Mutex // Protects stdin and the flags below
	closing     bool       // Terminate has been called (intentional shutdown)
	stdinClosed bool
	exitErr     error

	terminateOnce sync.Once
	terminateErr  error
}

// Compile-time verification that Process implements the Transport interface.
var _ config.Transport = (*Process)(nil)

// NewProcess creates a process transport for the given options.
//
// Engine discovery is deferred to Start(), which searches for the binary in
// the following order:
//  1. The explicit path in options.BinPath (if provided)
//  2. The system PATH
//  3. Common installation directories
//
// Start() returns EngineStartupError if the binary cannot be located.
func NewProcess(log *slog.Logger, options *config.Options) *Process {
	return &Process{
		log:            log.With("component", "process"),
		options:        options,
		stderrCallback: options.Stderr,
		lines:          make(chan string, linesBufferSize),
		done:           make(chan struct{}),
		writeSem:       make(chan struct{}, 1),
	}
}

// Start spawns the engine and begins draining its output.
//
// The process is not bound to ctx: it lives until Terminate or Kill.
// ctx only bounds discovery.
func (p *Process) Start(ctx context.Context) error {
	p.log.Info("Starting engine subprocess")

	discoverer := engine.NewDiscoverer(&engine.Config{
		BinPath: p.options.BinPath,
		Logger:  p.log,
	})

	binPath, err := discoverer.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover engine: %w", err)
	}

	p.binPath = binPath
	p.args = engine.BuildArgs(p.options)
	p.log.Debug("Built command line", "command", engine.Describe(binPath, p.args))

	//nolint:gosec // G204: launching the configured engine with dynamic args is the purpose
	cmd := exec.Command(p.binPath, p.args...)
	cmd.Env = engine.BuildEnvironment(p.options)
	cmd.Dir = p.options.Cwd

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.EngineStartupError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.EngineStartupError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &errors.EngineStartupError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		p.log.Error("Failed to start engine process", "error", err)

		return &errors.EngineStartupError{Err: fmt.Errorf("start process: %w", err)}
	}

	p.mu.Lock()
	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout
	p.stderr = stderr
	p.mu.Unlock()

	p.log.Info("Engine subprocess started", "pid", cmd.Process.Pid)

	go p.watch()

	return nil
}

// watch pumps both output streams and records the exit status. The reads
// must complete before cmd.Wait, see os/exec.Cmd.StdoutPipe.
func (p *Process) watch() {
	defer close(p.done)

	var wg sync.WaitGroup

	wg.Go(p.drainStderr)
	wg.Go(p.pumpStdout)
	wg.Wait()

	err := p.cmd.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closing {
		p.log.Debug("Engine process exited during shutdown")

		return
	}

	exitCode := 0
	if err != nil {
		exitCode = -1

		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		}
	}

	p.exitErr = &errors.EngineCrashError{
		ExitCode: exitCode,
		Stderr:   p.stderrText(),
		Err:      err,
	}

	p.log.Error("Engine process exited unexpectedly", "exit_code", exitCode, "error", err)
}

func (p *Process) pumpStdout() {
	defer close(p.lines)

	scanner := bufio.NewScanner(p.stdout)
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	count := 0

	for scanner.Scan() {
		count++
		p.lines <- strings.TrimRight(scanner.Text(), "\r")
	}

	if err := scanner.Err(); err != nil {
		p.log.Warn("Stdout scanner error", "error", err)
	}

	p.log.Debug("Stdout reached EOF", "line_count", count)
}

// drainStderr relies on the process exiting to close the pipe and unblock Scan.
func (p *Process) drainStderr() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 64*1024), maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Text()

		p.stderrMu.Lock()

		if p.stderrBuffer.Len() < maxStderrBufferSize {
			if p.stderrBuffer.Len() > 0 {
				p.stderrBuffer.WriteString("\n")
			}

			p.stderrBuffer.WriteString(line)
		}

		p.stderrMu.Unlock()

		if p.stderrCallback != nil {
			p.stderrCallback(line)
		}
	}

	if err := scanner.Err(); err != nil {
		p.log.Debug("Stderr scanner error", "error", err)
	}
}

func (p *Process) stderrText() string {
	p.stderrMu.Lock()
	defer p.stderrMu.Unlock()

	return strings.TrimSpace(p.stderrBuffer.String())
}

// Lines implements config.Transport.
func (p *Process) Lines() <-chan string {
	return p.lines
}

// Done implements config.Transport.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitError implements config.Transport.
func (p *Process) ExitError() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.exitErr
}

// Pid implements config.Transport.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}

	return p.cmd.Process.Pid
}

// SendLine writes one command line to the engine's stdin.
//
// Writes are serialized; waiting for a turn and the write itself both
// respect ctx. A call that returns before writing leaves stdin intact. If
// ctx ends during a blocked write, stdin is closed to unblock it and the
// returned error wraps ErrWriteAbandoned; later calls fail.
func (p *Process) SendLine(ctx context.Context, line string) error {
	select {
	case p.writeSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.writeSem }()

	p.mu.Lock()
	stdin, closed := p.stdin, p.stdinClosed
	p.mu.Unlock()

	if stdin == nil {
		return errors.ErrTransportNotStarted
	}

	if closed {
		return fmt.Errorf("write to stdin: %w", os.ErrClosed)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	data := []byte(line + "\n")

	done := make(chan error, 1)

	go func() {
		_, err := stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			p.log.Error("Failed to write to engine", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		p.log.Debug("Context ended during write, closing stdin")

		p.closeStdin()

		select {
		case <-done:
		case <-time.After(writeAbandonTimeout):
			p.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return fmt.Errorf("%w: %w", errors.ErrWriteAbandoned, ctx.Err())
	}
}

// Terminate asks the engine to quit, kills it if it has not exited when ctx
// expires, closes stdin and waits for both output pumps. It's safe to call
// Terminate multiple times.
func (p *Process) Terminate(ctx context.Context, quitCommand string) error {
	p.terminateOnce.Do(func() {
		p.terminateErr = p.terminate(ctx, quitCommand)
	})

	return p.terminateErr
}

func (p *Process) terminate(ctx context.Context, quitCommand string) error {
	p.mu.Lock()
	started := p.cmd != nil
	p.closing = true
	p.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-p.done:
		p.closeStdin()

		return nil
	default:
	}

	if quitCommand != "" {
		if err := p.SendLine(ctx, quitCommand); err != nil {
			p.log.Debug("Failed to send quit command", "error", err)
		}
	}

	select {
	case <-p.done:
		p.log.Debug("Engine exited after quit")
	case <-ctx.Done():
		p.log.Warn("Engine did not exit in time, killing", "pid", p.Pid())

		if err := p.Kill(); err != nil {
			p.log.Debug("Kill failed", "error", err)
		}

		<-p.done
	}

	p.closeStdin()

	return nil
}

func (p *Process) closeStdin() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin != nil && !p.stdinClosed {
		_ = p.stdin.Close()
		p.stdinClosed = true
	}
}

// Kill force-terminates the engine. It's safe to call on an exited process.
func (p *Process) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	p.log.Debug("Killing engine process", "pid", p.cmd.Process.Pid)

	if err := p.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill engine process (pid %d): %w", p.cmd.Process.Pid, err)
	}

	return nil
}
