package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/wagiedev/grads-sdk-go/internal/bridge"
	"github.com/wagiedev/grads-sdk-go/internal/errors"
	"github.com/wagiedev/grads-sdk-go/internal/parse"
)

// Export evaluates expr in the engine's current dimension environment and
// returns the result.
//
// Returns UndefinedVariableError when the engine cannot evaluate expr.
func (s *Session) Export(ctx context.Context, expr string) (*bridge.Array, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	a, _, err := s.bridge.Export(ctx, expr)

	return a, err
}

// Import binds a to name in the engine, or renders it when name is
// bridge.Display. grid, when non-nil, replaces the array's own grid.
//
// A name already defined through Import must receive the same extents;
// otherwise ShapeMismatchError is returned before anything is sent.
func (s *Session) Import(ctx context.Context, name string, a *bridge.Array, grid *bridge.Grid) error {
	if a == nil {
		return fmt.Errorf("import %s: nil array", name)
	}

	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	key := strings.ToLower(name)

	if name != bridge.Display {
		s.mu.Lock()
		want, ok := s.defined[key]
		s.mu.Unlock()

		if ok {
			if err := bridge.CheckShape(name, want, a, grid); err != nil {
				return err
			}
		}
	}

	if _, err := s.bridge.Import(ctx, name, a, grid); err != nil {
		return err
	}

	if name != bridge.Display {
		shape := a.Shape()
		if grid != nil {
			shape = grid.Shape()
		}

		s.mu.Lock()
		s.defined[key] = shape
		s.mu.Unlock()
	}

	return nil
}

// Defined returns the extents recorded for a variable defined through
// Import.
func (s *Session) Defined(name string) ([4]int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shape, ok := s.defined[strings.ToLower(name)]

	return shape, ok
}

// Undefine releases a defined variable in the engine.
func (s *Session) Undefine(ctx context.Context, name string) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	command := "undefine " + name

	out, err := s.execute(ctx, command)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.defined, strings.ToLower(name))
	s.mu.Unlock()

	if parse.Classify(out).Matched() {
		return &errors.CommandError{Command: command, Output: out.Lines()}
	}

	return nil
}

// Reinit returns the engine to its startup state: all files are closed and
// all defined variables released. Every handle is invalidated.
func (s *Session) Reinit(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	out, err := s.execute(ctx, "reinit")
	if err != nil {
		return err
	}

	s.invalidateAll()

	if parse.Classify(out).Matched() {
		return &errors.CommandError{Command: "reinit", Output: out.Lines()}
	}

	return nil
}
