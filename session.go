package grads

import (
	"context"
)

// Session provides a stateful interface to one running engine.
//
// Commands run strictly one at a time, in the order callers arrive. Each
// command's reply replaces the previous one; read it back with Rline and
// Rword or take the whole Output.
//
// Lifecycle: Sessions are single-use. After Close(), start a new one.
//
// Example usage:
//
//	s, err := grads.Start(ctx,
//	    grads.WithLogger(slog.Default()),
//	    grads.WithCommandTimeout(time.Minute),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	fh, err := s.Open(ctx, "model.ctl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := s.Cmd(ctx, "set lon -180 180"); err != nil {
//	    log.Fatal(err)
//	}
//
//	ps, err := s.Export(ctx, "ps")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(fh.Shape(), ps.Shape())
type Session interface {
	// Execute sends one or more newline-separated commands and returns the
	// engine's reply. Engine error text is ordinary output here.
	Execute(ctx context.Context, text string) (*Output, error)

	// Cmd is Execute without the reply. The method value s.Cmd is the
	// session's callable shorthand.
	Cmd(ctx context.Context, text string) error

	// Output returns the reply of the most recent command.
	Output() *Output

	// Rline returns line i (1-based) of the most recent reply, or "".
	Rline(i int) string

	// Rword returns word j of line i (both 1-based) of the most recent
	// reply, or "".
	Rword(i, j int) string

	// LineCount returns the number of lines in the most recent reply.
	LineCount() int

	// Open opens a data file and registers its handle.
	// Returns FileNotFoundError or UnsupportedFormatError when the engine
	// rejects the file; the session stays usable.
	Open(ctx context.Context, path string, opts ...OpenOption) (*FileHandle, error)

	// CloseFile closes engine file fid. Its handle stays in Files, marked closed.
	CloseFile(ctx context.Context, fid int) error

	// Files returns every handle opened in this session, closed ones included.
	Files() []*FileHandle

	// Query runs a structured query. kind is one of QueryDims, QueryFile or
	// QueryConfig; anything else returns ErrUnknownQueryKind without I/O.
	Query(ctx context.Context, kind QueryKind) (any, error)

	// QueryDims returns the current dimension environment.
	QueryDims(ctx context.Context) (*DimensionState, error)

	// QueryFile describes engine file fid, or the default file when fid is 0.
	QueryFile(ctx context.Context, fid int) (*FileInfo, error)

	// QueryConfig asks the engine for its build configuration.
	QueryConfig(ctx context.Context) (*ConfigInfo, error)

	// Export evaluates expr in the current dimension environment.
	// Returns UndefinedVariableError when the engine cannot evaluate it.
	Export(ctx context.Context, expr string) (*Array, error)

	// Import binds arr to name, or renders it when name is Display. grid,
	// when non-nil, replaces the array's own grid. Returns
	// ShapeMismatchError before any I/O when extents disagree.
	Import(ctx context.Context, name string, arr *Array, grid *Grid) error

	// Undefine releases a defined variable.
	Undefine(ctx context.Context, name string) error

	// Reinit closes all files and releases all defined variables.
	Reinit(ctx context.Context) error

	// Config returns the configuration reported at startup.
	Config() *ConfigInfo

	// Pid returns the engine's process id.
	Pid() int

	// Alive reports whether the session still accepts commands.
	Alive() bool

	// Err returns the error that ended the session, or nil while it is alive.
	Err() error

	// Close asks the engine to quit and releases all resources.
	// Safe to call multiple times.
	Close() error
}

// Start launches an engine and waits until it is ready for commands.
//
// Returns EngineStartupError if the engine cannot be found, cannot be
// executed or does not answer within the startup timeout.
//
// ctx bounds startup only; the session lives until Close.
func Start(ctx context.Context, opts ...Option) (Session, error) {
	s := newSessionImpl()

	if err := s.impl.Start(ctx, applyOptions(opts)); err != nil {
		return nil, err
	}

	return s, nil
}
