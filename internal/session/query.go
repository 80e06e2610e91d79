package session

import (
	"context"
	"fmt"

	"github.com/wagiedev/grads-sdk-go/internal/errors"
	"github.com/wagiedev/grads-sdk-go/internal/parse"
)

// QueryKind names a structured query.
type QueryKind string

const (
	QueryDims   QueryKind = "dims"
	QueryFile   QueryKind = "file"
	QueryConfig QueryKind = "config"
)

// QueryKinds lists the supported kinds.
var QueryKinds = []QueryKind{QueryDims, QueryFile, QueryConfig}

// Query runs the query for kind and returns its record: *parse.DimensionState,
// *parse.FileInfo for the default file or *parse.ConfigInfo.
//
// An unknown kind returns ErrUnknownQueryKind without contacting the engine.
func (s *Session) Query(ctx context.Context, kind QueryKind) (any, error) {
	switch kind {
	case QueryDims:
		return s.QueryDims(ctx)
	case QueryFile:
		return s.QueryFile(ctx, 0)
	case QueryConfig:
		return s.QueryConfig(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownQueryKind, kind)
	}
}

// QueryDims returns the current dimension environment.
func (s *Session) QueryDims(ctx context.Context) (*parse.DimensionState, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	out, err := s.execute(ctx, "q dims")
	if err != nil {
		return nil, err
	}

	if out.Find(s.grammar.DimsAnchor) == 0 {
		if c := parse.Classify(out); c.Matched() {
			return nil, &errors.CommandError{Command: "q dims", Output: out.Lines()}
		}
	}

	return parse.ParseDims(out, s.grammar)
}

// QueryFile describes engine file fid, or the default file when fid is 0.
func (s *Session) QueryFile(ctx context.Context, fid int) (*parse.FileInfo, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	return s.queryFile(ctx, fid)
}

func (s *Session) queryFile(ctx context.Context, fid int) (*parse.FileInfo, error) {
	command := "q file"
	if fid > 0 {
		command = fmt.Sprintf("q file %d", fid)
	}

	out, err := s.execute(ctx, command)
	if err != nil {
		return nil, err
	}

	if out.Find(s.grammar.FileAnchor) == 0 {
		if c := parse.Classify(out); c.Matched() {
			return nil, &errors.CommandError{Command: command, Output: out.Lines()}
		}
	}

	return parse.ParseFileInfo(out, s.grammar)
}

// QueryConfig asks the engine for its build configuration.
func (s *Session) QueryConfig(ctx context.Context) (*parse.ConfigInfo, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	out, err := s.execute(ctx, probeCommand)
	if err != nil {
		return nil, err
	}

	return parse.ParseConfig(out, s.grammar)
}
