package grads

import (
	"context"
	"fmt"
)

// WithSession manages session lifecycle with automatic cleanup.
//
// It starts a session with the provided options, runs fn, and closes the
// session when fn returns. fn's error is returned as is. A failing Close is
// logged but does not override fn's error.
//
// Example usage:
//
//	err := grads.WithSession(ctx, func(s grads.Session) error {
//	    if _, err := s.Open(ctx, "model.ctl"); err != nil {
//	        return err
//	    }
//	    return s.Cmd(ctx, "display ps")
//	},
//	    grads.WithLogger(log),
//	    grads.WithBinPath("/opt/grads/bin/grads"),
//	)
func WithSession(ctx context.Context, fn func(Session) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	s, err := Start(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			log.Warn("failed to close session", "error", closeErr)
		}
	}()

	return fn(s)
}
