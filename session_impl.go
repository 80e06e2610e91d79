package grads

import (
	"context"
	"runtime"

	"github.com/wagiedev/grads-sdk-go/internal/session"
)

// sessionWrapper adapts the internal session to the public interface.
type sessionWrapper struct {
	impl    *session.Session
	cleanup runtime.Cleanup
}

// Compile-time check that *sessionWrapper implements the Session interface.
var _ Session = (*sessionWrapper)(nil)

// newSessionImpl returns a wrapper whose engine is stopped once the wrapper
// becomes unreachable. The cleanup hangs off the wrapper because the inner
// session stays reachable from its own goroutines until closed.
func newSessionImpl() *sessionWrapper {
	s := &sessionWrapper{impl: session.New()}
	s.cleanup = runtime.AddCleanup(s, closeUnreachable, s.impl)

	return s
}

// closeUnreachable runs on the runtime's cleanup goroutine, so the
// potentially slow shutdown happens elsewhere.
func closeUnreachable(impl *session.Session) {
	go func() { _ = impl.Close() }()
}

func (s *sessionWrapper) Execute(ctx context.Context, text string) (*Output, error) {
	return s.impl.Execute(ctx, text)
}

func (s *sessionWrapper) Cmd(ctx context.Context, text string) error {
	return s.impl.Cmd(ctx, text)
}

func (s *sessionWrapper) Output() *Output {
	return s.impl.Output()
}

func (s *sessionWrapper) Rline(i int) string {
	return s.impl.Rline(i)
}

func (s *sessionWrapper) Rword(i, j int) string {
	return s.impl.Rword(i, j)
}

func (s *sessionWrapper) LineCount() int {
	return s.impl.LineCount()
}

func (s *sessionWrapper) Open(ctx context.Context, path string, opts ...OpenOption) (*FileHandle, error) {
	o := applyOpenOptions(opts)

	return s.impl.Open(ctx, path, o.format)
}

func (s *sessionWrapper) CloseFile(ctx context.Context, fid int) error {
	return s.impl.CloseFile(ctx, fid)
}

func (s *sessionWrapper) Files() []*FileHandle {
	return s.impl.Files()
}

func (s *sessionWrapper) Query(ctx context.Context, kind QueryKind) (any, error) {
	return s.impl.Query(ctx, kind)
}

func (s *sessionWrapper) QueryDims(ctx context.Context) (*DimensionState, error) {
	return s.impl.QueryDims(ctx)
}

func (s *sessionWrapper) QueryFile(ctx context.Context, fid int) (*FileInfo, error) {
	return s.impl.QueryFile(ctx, fid)
}

func (s *sessionWrapper) QueryConfig(ctx context.Context) (*ConfigInfo, error) {
	return s.impl.QueryConfig(ctx)
}

func (s *sessionWrapper) Export(ctx context.Context, expr string) (*Array, error) {
	return s.impl.Export(ctx, expr)
}

func (s *sessionWrapper) Import(ctx context.Context, name string, arr *Array, grid *Grid) error {
	return s.impl.Import(ctx, name, arr, grid)
}

func (s *sessionWrapper) Undefine(ctx context.Context, name string) error {
	return s.impl.Undefine(ctx, name)
}

func (s *sessionWrapper) Reinit(ctx context.Context) error {
	return s.impl.Reinit(ctx)
}

func (s *sessionWrapper) Config() *ConfigInfo {
	return s.impl.Config()
}

func (s *sessionWrapper) Pid() int {
	return s.impl.Pid()
}

func (s *sessionWrapper) Alive() bool {
	return s.impl.Alive()
}

func (s *sessionWrapper) Err() error {
	return s.impl.Err()
}

func (s *sessionWrapper) Close() error {
	s.cleanup.Stop()

	return s.impl.Close()
}
