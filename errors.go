package grads

import "github.com/wagiedev/grads-sdk-go/internal/errors"

// Re-export error types from internal package

// GradsError is the base interface for all SDK errors.
type GradsError = errors.GradsError

// EngineStartupError indicates the engine could not be found, launched or
// made ready. No session exists.
type EngineStartupError = errors.EngineStartupError

// EngineCrashError indicates the engine exited or its pipe broke. The session is dead.
type EngineCrashError = errors.EngineCrashError

// CommandTimeoutError indicates a reply did not complete in time. The session is dead.
type CommandTimeoutError = errors.CommandTimeoutError

// ParseError indicates engine output did not match the expected grammar.
type ParseError = errors.ParseError

// FileNotFoundError indicates the engine could not find a file.
type FileNotFoundError = errors.FileNotFoundError

// UnsupportedFormatError indicates the engine could not interpret a file.
type UnsupportedFormatError = errors.UnsupportedFormatError

// UndefinedVariableError indicates the engine could not evaluate an expression.
type UndefinedVariableError = errors.UndefinedVariableError

// ShapeMismatchError indicates an import whose extents disagree with its
// destination. Nothing was sent.
type ShapeMismatchError = errors.ShapeMismatchError

// CommandError indicates recognized engine error text in reply to a
// structured operation.
type CommandError = errors.CommandError

// Re-export sentinel errors from internal package.
var (
	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.ErrSessionClosed

	// ErrUnknownQueryKind indicates a query kind outside the supported set.
	ErrUnknownQueryKind = errors.ErrUnknownQueryKind

	// ErrFileNotRegistered indicates a file id never opened in the session.
	ErrFileNotRegistered = errors.ErrFileNotRegistered

	// ErrTransportNotStarted indicates the session was never started.
	ErrTransportNotStarted = errors.ErrTransportNotStarted
)

// IsFatal reports whether err ended the session.
func IsFatal(err error) bool {
	return errors.IsFatal(err)
}
