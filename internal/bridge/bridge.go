package bridge

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/wagiedev/grads-sdk-go/internal/errors"
	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
	"github.com/wagiedev/grads-sdk-go/internal/parse"
)

// Display is the import destination that renders the field instead of
// binding it to a name.
const Display = "<display>"

// Executor runs one batch of engine commands.
type Executor interface {
	Execute(ctx context.Context, text string) (*linebuf.Output, error)
}

// Bridge runs exports and imports over an Executor.
type Bridge struct {
	log   *slog.Logger
	exec  Executor
	store *Store
	order binary.ByteOrder
}

// New creates a bridge. order must match the engine's build.
func New(log *slog.Logger, exec Executor, store *Store, order binary.ByteOrder) *Bridge {
	return &Bridge{
		log:   log.With("component", "bridge"),
		exec:  exec,
		store: store,
		order: order,
	}
}

// ExportCommands returns the batch that makes the engine evaluate expr and
// write the result to path.
func ExportCommands(path, expr string) string {
	return fmt.Sprintf("ipc_open %s w\ndisplay ipc_save(%s)\nipc_close", path, expr)
}

// ImportCommands returns the batch that loads path into name, or renders it
// when name is Display.
func ImportCommands(path, name string) string {
	load := fmt.Sprintf("define %s = ipc_load()", name)
	if name == Display {
		load = "display ipc_load()"
	}

	return fmt.Sprintf("ipc_open %s r\n%s\nipc_close", path, load)
}

// Export evaluates expr in the engine and returns the result. The returned
// output is the engine's response, also on engine-reported errors.
func (b *Bridge) Export(ctx context.Context, expr string) (*Array, *linebuf.Output, error) {
	path := b.store.Acquire()
	defer b.remove(ctx, path)

	b.log.Debug("Exporting expression", "expr", expr, "path", path)

	out, err := b.exec.Execute(ctx, ExportCommands(path, expr))
	if err != nil {
		return nil, out, err
	}

	if c := parse.Classify(out); c.Matched() {
		if c.Pattern == parse.PatternUndefinedVariable {
			return nil, out, &errors.UndefinedVariableError{Expr: expr, Output: out.Lines()}
		}

		return nil, out, &errors.CommandError{Command: fmt.Sprintf("display ipc_save(%s)", expr), Output: out.Lines()}
	}

	a, err := b.store.Read(ctx, path, b.order)
	if err != nil {
		return nil, out, err
	}

	b.log.Debug("Exported expression", "expr", expr, "shape", a.Shape())

	return a, out, nil
}

// Import writes a to a transfer file and loads it into name. grid, when
// non-nil, replaces the array's own grid. Destination extents are the
// caller's concern; Import only checks that data and grid agree.
func (b *Bridge) Import(ctx context.Context, name string, a *Array, grid *Grid) (*linebuf.Output, error) {
	src, err := withGrid(name, a, grid)
	if err != nil {
		return nil, err
	}

	path := b.store.Acquire()
	defer b.remove(ctx, path)

	if err := b.store.Write(ctx, path, b.order, src); err != nil {
		return nil, err
	}

	b.log.Debug("Importing array", "name", name, "shape", src.Shape(), "path", path)

	out, err := b.exec.Execute(ctx, ImportCommands(path, name))
	if err != nil {
		return out, err
	}

	if c := parse.Classify(out); c.Matched() {
		return out, &errors.CommandError{Command: "ipc_load() into " + name, Output: out.Lines()}
	}

	return out, nil
}

// withGrid applies an override grid and checks the result.
func withGrid(name string, a *Array, grid *Grid) (*Array, error) {
	if a == nil {
		return nil, fmt.Errorf("import %s: nil array", name)
	}

	g := a.Grid
	if grid != nil {
		g = *grid
	}

	if err := g.Validate(); err != nil {
		return nil, &errors.ShapeMismatchError{
			Name:   name,
			Want:   g.Shape(),
			Got:    [4]int{len(g.Lon), len(g.Lat), len(g.Lev), len(g.Time)},
			Detail: err.Error(),
		}
	}

	if len(a.Data) != g.Size() {
		return nil, &errors.ShapeMismatchError{
			Name:   name,
			Want:   g.Shape(),
			Got:    suppliedShape(a, g.Shape()),
			Detail: fmt.Sprintf("%d values for %d grid points", len(a.Data), g.Size()),
		}
	}

	return &Array{Data: a.Data, Grid: g}, nil
}

// suppliedShape is the array's own shape when its data fills it, otherwise
// the data as a flat x run.
func suppliedShape(a *Array, want [4]int) [4]int {
	if shape := a.Shape(); shape != want && a.Grid.Size() == len(a.Data) {
		return shape
	}

	return [4]int{len(a.Data), 1, 1, 1}
}

// remove runs even when ctx is already cancelled.
func (b *Bridge) remove(ctx context.Context, path string) {
	if err := b.store.Remove(context.WithoutCancel(ctx), path); err != nil {
		b.log.Warn("Failed to remove transfer file", "path", path, "error", err)
	}
}

// CheckShape compares an import's extents with those declared for its
// destination.
func CheckShape(name string, want [4]int, a *Array, grid *Grid) error {
	got := a.Shape()
	if grid != nil {
		got = grid.Shape()
	}

	if got != want {
		return &errors.ShapeMismatchError{Name: name, Want: want, Got: got}
	}

	return nil
}
