package subprocess

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wagiedev/grads-sdk-go/internal/config"
	"github.com/wagiedev/grads-sdk-go/internal/enginetest"
	"github.com/wagiedev/grads-sdk-go/internal/errors"
)

func TestMain(m *testing.M) {
	enginetest.RunIfRequested()
	os.Exit(m.Run())
}

func startFake(t *testing.T, opts *config.Options) *Process {
	t.Helper()

	opts.BinPath = enginetest.BinPath(t)
	if opts.Env == nil {
		opts.Env = enginetest.Env()
	}

	p := NewProcess(slog.Default(), opts)
	require.NoError(t, p.Start(context.Background()))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = p.Terminate(ctx, config.DefaultQuitCommand)
	})

	return p
}

// waitForLine reads lines until one equals want.
func waitForLine(t *testing.T, p *Process, want string) []string {
	t.Helper()

	var seen []string

	timeout := time.After(5 * time.Second)

	for {
		select {
		case line, ok := <-p.Lines():
			if !ok {
				t.Fatalf("stdout closed before %q, saw %q", want, seen)
			}

			seen = append(seen, line)
			if line == want {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q, saw %q", want, seen)
		}
	}
}

func drain(p *Process) {
	go func() {
		for range p.Lines() {
		}
	}()
}

func TestStart_EngineNotFound(t *testing.T) {
	p := NewProcess(slog.Default(), &config.Options{BinPath: "/nonexistent/grads"})

	err := p.Start(context.Background())

	_, ok := stderrors.AsType[*errors.EngineStartupError](err)
	require.True(t, ok)
	require.Equal(t, 0, p.Pid())
}

func TestProcess_EchoAndQuit(t *testing.T) {
	p := startFake(t, &config.Options{})

	require.NotZero(t, p.Pid())
	require.NoError(t, p.SendLine(context.Background(), "!echo hello"))

	seen := waitForLine(t, p, "hello")
	require.Contains(t, strings.Join(seen, "\n"), "Running in Batch mode")

	drain(p)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Terminate(ctx, config.DefaultQuitCommand))

	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed after Terminate")
	}

	require.NoError(t, p.ExitError())
	require.NoError(t, p.Terminate(ctx, config.DefaultQuitCommand))
}

func TestProcess_CrashRecordsExit(t *testing.T) {
	var (
		mu     sync.Mutex
		stderr []string
	)

	p := startFake(t, &config.Options{
		Stderr: func(line string) {
			mu.Lock()
			defer mu.Unlock()

			stderr = append(stderr, line)
		},
	})

	drain(p)
	require.NoError(t, p.SendLine(context.Background(), "crash"))

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not exit")
	}

	crash, ok := stderrors.AsType[*errors.EngineCrashError](p.ExitError())
	require.True(t, ok)
	require.Equal(t, 139, crash.ExitCode)
	require.Contains(t, crash.Stderr, "Segmentation fault")

	mu.Lock()
	defer mu.Unlock()

	require.Contains(t, strings.Join(stderr, "\n"), "Segmentation fault")
}

func TestProcess_WriteAfterExitFails(t *testing.T) {
	p := startFake(t, &config.Options{})

	drain(p)
	require.NoError(t, p.SendLine(context.Background(), "crash"))
	<-p.Done()

	// The pipe may accept one buffered write before reporting EPIPE
	var err error
	for range 3 {
		if err = p.SendLine(context.Background(), "q dims"); err != nil {
			break
		}
	}

	require.Error(t, err)
}

func TestTerminate_KillsHungEngine(t *testing.T) {
	p := startFake(t, &config.Options{})

	drain(p)
	require.NoError(t, p.SendLine(context.Background(), "hang"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	require.NoError(t, p.Terminate(ctx, config.DefaultQuitCommand))
	require.Less(t, time.Since(start), 3*time.Second)

	<-p.Done()
	require.NoError(t, p.ExitError())
}

func TestProcess_StartupFailureExits(t *testing.T) {
	p := startFake(t, &config.Options{Env: enginetest.Env(enginetest.EnvExitOnStart, "1")})

	drain(p)

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not exit")
	}

	crash, ok := stderrors.AsType[*errors.EngineCrashError](p.ExitError())
	require.True(t, ok)
	require.Equal(t, 2, crash.ExitCode)
	require.Contains(t, crash.Stderr, "unable to initialize graphics")
}

func TestSendLine_BeforeStart(t *testing.T) {
	p := NewProcess(slog.Default(), &config.Options{})

	err := p.SendLine(context.Background(), "q dims")
	require.ErrorIs(t, err, errors.ErrTransportNotStarted)
}

func TestSendLine_CancelledContext(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	p := NewProcess(slog.Default(), &config.Options{})
	p.stdin = writer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for range 50 {
		err := p.SendLine(ctx, "q dims")
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, errors.ErrWriteAbandoned)
	}

	require.False(t, p.stdinClosed, "an ended context before writing leaves stdin open")
}

// TestSendLine_CancelDuringBlockedWrite tests that a blocked write is abandoned
// and stdin closed when ctx expires.
func TestSendLine_CancelDuringBlockedWrite(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()

	p := NewProcess(slog.Default(), &config.Options{})
	p.stdin = writer

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Nobody reads the pipe, so the write blocks
	err := p.SendLine(ctx, "display ps")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, errors.ErrWriteAbandoned)
	require.True(t, p.stdinClosed)

	err = p.SendLine(context.Background(), "display ps")
	require.ErrorIs(t, err, os.ErrClosed)
}

func TestBlockedWrite_DoesNotHoldUpControl(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	p := NewProcess(slog.Default(), &config.Options{})
	p.stdin = writer

	writeDone := make(chan error, 1)

	go func() {
		// Nobody reads the pipe and ctx never ends, so this write blocks.
		writeDone <- p.SendLine(context.Background(), "display ps")
	}()

	// Wait until the write holds the write slot.
	require.Eventually(t, func() bool { return len(p.writeSem) == 1 }, time.Second, time.Millisecond)

	controlDone := make(chan struct{})

	go func() {
		defer close(controlDone)

		_ = p.Pid()
		_ = p.Kill()
	}()

	select {
	case <-controlDone:
	case <-time.After(time.Second):
		t.Fatal("Pid and Kill blocked behind a stuck write")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.SendLine(ctx, "quit")
	require.ErrorIs(t, err, context.DeadlineExceeded, "waiting for the write slot honours ctx")
	require.False(t, p.stdinClosed)

	require.NoError(t, reader.Close())
	require.Error(t, <-writeDone)
}

func TestConcurrentWrites_AreSerialized(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	p := NewProcess(slog.Default(), &config.Options{})
	p.stdin = writer

	received := make(chan string, 100)

	go func() {
		data, _ := io.ReadAll(reader)
		for line := range strings.SplitSeq(strings.TrimSpace(string(data)), "\n") {
			received <- line
		}

		close(received)
	}()

	const numWriters = 10

	var wg sync.WaitGroup

	for i := range numWriters {
		wg.Go(func() {
			_ = p.SendLine(context.Background(), "display "+strconv.Itoa(i))
		})
	}

	wg.Wait()
	require.NoError(t, writer.Close())

	count := 0
	for line := range received {
		require.True(t, strings.HasPrefix(line, "display "), "interleaved write: %q", line)

		count++
	}

	require.Equal(t, numWriters, count)
}

func TestKill_SafeBeforeStart(t *testing.T) {
	p := NewProcess(slog.Default(), &config.Options{})

	require.NoError(t, p.Kill())
	require.NoError(t, p.Terminate(context.Background(), config.DefaultQuitCommand))
}
