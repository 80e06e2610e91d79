package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/grads-sdk-go/internal/bridge"
	"github.com/wagiedev/grads-sdk-go/internal/config"
	"github.com/wagiedev/grads-sdk-go/internal/errors"
	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
	"github.com/wagiedev/grads-sdk-go/internal/parse"
	"github.com/wagiedev/grads-sdk-go/internal/protocol"
	"github.com/wagiedev/grads-sdk-go/internal/subprocess"
)

// probeCommand is sent once at startup; its reply proves the engine reads
// commands and reports the build configuration.
const probeCommand = "q config"

// Session drives one engine process.
type Session struct {
	log       *slog.Logger
	options   *config.Options
	transport config.Transport
	channel   *protocol.Channel
	bridge    *bridge.Bridge
	grammar   *parse.Grammar
	config    *parse.ConfigInfo

	// slot serializes facade operations so multi-command operations such as
	// Open are never split by another caller.
	slot chan struct{}

	// Errgroup for goroutine management
	eg   *errgroup.Group
	done chan struct{}

	mu      sync.Mutex // Protects the fields below
	last    *linebuf.Output
	files   []*FileHandle
	nextSeq int
	defined map[string][4]int
	started bool
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

// New creates a session. It does not start an engine until Start.
func New() *Session {
	return &Session{
		slot:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		defined: make(map[string][4]int),
		last:    linebuf.New(nil),
	}
}

// Start launches the engine and waits until it answers a probe command.
//
// Returns EngineStartupError if the engine cannot be found, cannot be
// executed, or does not answer within Options.StartupTimeout. On failure the
// engine process is killed.
func (s *Session) Start(ctx context.Context, options *config.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrSessionClosed
	}

	if s.started {
		return fmt.Errorf("session already started")
	}

	if options == nil {
		options = &config.Options{}
	}

	options, err := options.Resolve()
	if err != nil {
		return &errors.EngineStartupError{Err: fmt.Errorf("resolve options: %w", err)}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s.log = log.With("component", "session")
	s.options = options

	var forced *parse.Grammar

	if options.Grammar != "" {
		forced, err = parse.LookupGrammar(options.Grammar)
		if err != nil {
			return &errors.EngineStartupError{Err: err}
		}
	}

	var transport config.Transport

	if options.Transport != nil {
		transport = options.Transport

		s.log.Debug("Using injected custom transport")
	} else {
		transport = subprocess.NewProcess(log, options)
	}

	if err := transport.Start(ctx); err != nil {
		return err
	}

	s.transport = transport
	s.channel = protocol.NewChannel(log, transport, options)
	s.channel.Start()

	// The session outlives ctx, which may only bound startup.
	s.eg, _ = errgroup.WithContext(context.Background())
	s.eg.Go(s.watch)

	cfg, err := s.probe(ctx)
	if err != nil {
		s.abort()

		return err
	}

	s.config = cfg

	s.grammar = forced
	if s.grammar == nil {
		s.grammar = parse.GrammarForEngine(cfg.Version)
	}

	orderName := options.ByteOrder
	if orderName == "" {
		orderName = cfg.ByteOrder()
	}

	order, err := bridge.ByteOrder(orderName)
	if err != nil {
		s.abort()

		return &errors.EngineStartupError{Err: err}
	}

	s.bridge = bridge.New(log, executorFunc(s.execute), bridge.NewStore(options.TransferDir), order)
	s.started = true

	s.log.Info("Engine ready",
		"pid", transport.Pid(),
		"version", cfg.Version,
		"grammar", s.grammar.Version,
		"byte_order", orderName,
	)

	return nil
}

// probe waits for the engine to answer its first command.
func (s *Session) probe(ctx context.Context) (*parse.ConfigInfo, error) {
	probeCtx, cancel := context.WithTimeout(ctx, s.options.StartupTimeout)
	defer cancel()

	out, err := s.channel.Execute(probeCtx, probeCommand)
	if err != nil {
		return nil, &errors.EngineStartupError{Err: fmt.Errorf("engine did not become ready: %w", err)}
	}

	s.last = out

	cfg, err := parse.ParseConfig(out, parse.GrammarV2)
	if err != nil {
		s.log.Warn("Engine configuration not understood, using defaults", "error", err)

		return &parse.ConfigInfo{Values: map[string]string{}, Lines: out.Lines()}, nil
	}

	return cfg, nil
}

// abort tears down a session whose startup failed.
func (s *Session) abort() {
	s.channel.SetFatalError(errors.ErrSessionClosed)

	if err := s.transport.Kill(); err != nil {
		s.log.Debug("Kill after failed startup", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()

	_ = s.transport.Terminate(ctx, "")

	close(s.done)
	_ = s.eg.Wait()
}

// watch marks the channel dead as soon as the engine exits on its own, so
// later calls fail without I/O.
func (s *Session) watch() error {
	select {
	case <-s.transport.Done():
		if err := s.transport.ExitError(); err != nil {
			s.log.Error("Engine exited", "error", err)
			s.channel.SetFatalError(err)

			return err
		}

		return nil
	case <-s.done:
		return nil
	}
}

// executorFunc adapts a function to bridge.Executor.
type executorFunc func(ctx context.Context, text string) (*linebuf.Output, error)

func (f executorFunc) Execute(ctx context.Context, text string) (*linebuf.Output, error) {
	return f(ctx, text)
}

// acquire takes the serialization slot.
func (s *Session) acquire(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}

	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() {
	<-s.slot
}

// check fails fast on closed or dead sessions.
func (s *Session) check() error {
	s.mu.Lock()
	started, closed := s.started, s.closed
	s.mu.Unlock()

	if closed {
		return errors.ErrSessionClosed
	}

	if !started {
		return errors.ErrTransportNotStarted
	}

	return s.channel.Err()
}

// execute runs text and records the reply. The caller holds the slot.
func (s *Session) execute(ctx context.Context, text string) (*linebuf.Output, error) {
	out, err := s.channel.Execute(ctx, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = out
	s.mu.Unlock()

	return out, nil
}

// Execute sends text to the engine and returns its reply. Engine error text
// is returned as ordinary output.
func (s *Session) Execute(ctx context.Context, text string) (*linebuf.Output, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	return s.execute(ctx, text)
}

// Cmd is Execute without the reply. The reply stays readable through Rline
// and Rword.
func (s *Session) Cmd(ctx context.Context, text string) error {
	_, err := s.Execute(ctx, text)

	return err
}

// Output returns the reply of the most recent command.
func (s *Session) Output() *linebuf.Output {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.last
}

// Rline returns line i (1-based) of the most recent reply, or "".
func (s *Session) Rline(i int) string {
	return s.Output().Line(i)
}

// Rword returns word j of line i (both 1-based) of the most recent reply,
// or "".
func (s *Session) Rword(i, j int) string {
	return s.Output().Word(i, j)
}

// LineCount returns the number of lines in the most recent reply.
func (s *Session) LineCount() int {
	return s.Output().LineCount()
}

// Config returns the configuration reported at startup.
func (s *Session) Config() *parse.ConfigInfo {
	return s.config
}

// Grammar returns the reply grammar in use.
func (s *Session) Grammar() *parse.Grammar {
	return s.grammar
}

// Pid returns the engine's process id.
func (s *Session) Pid() int {
	if s.transport == nil {
		return 0
	}

	return s.transport.Pid()
}

// Alive reports whether the session still accepts commands.
func (s *Session) Alive() bool {
	return s.check() == nil
}

// Err returns the error that ended the session, or nil.
func (s *Session) Err() error {
	return s.check()
}

// Close asks the engine to quit, kills it if it lingers and releases all
// resources. It's safe to call Close multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		wasStarted := s.started
		s.mu.Unlock()

		if !wasStarted {
			return
		}

		s.log.Info("Closing session")

		// In-flight and queued calls fail with ErrSessionClosed from now on.
		s.channel.SetFatalError(errors.ErrSessionClosed)

		close(s.done)

		ctx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()

		s.closeErr = s.transport.Terminate(ctx, config.DefaultQuitCommand)

		if err := s.eg.Wait(); err != nil {
			s.log.Debug("Engine had already exited", "error", err)
		}

		s.log.Info("Session closed")
	})

	return s.closeErr
}
