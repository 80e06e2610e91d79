package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// GradsError is the base interface for all SDK errors.
type GradsError interface {
	error
	IsGradsError() bool
}

// Compile-time verification that all error types implement GradsError.
var (
	_ GradsError = (*EngineStartupError)(nil)
	_ GradsError = (*EngineCrashError)(nil)
	_ GradsError = (*CommandTimeoutError)(nil)
	_ GradsError = (*ParseError)(nil)
	_ GradsError = (*FileNotFoundError)(nil)
	_ GradsError = (*UnsupportedFormatError)(nil)
	_ GradsError = (*UndefinedVariableError)(nil)
	_ GradsError = (*ShapeMismatchError)(nil)
	_ GradsError = (*CommandError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrSessionClosed indicates the session has been closed and cannot be reused.
	ErrSessionClosed = errors.New("session closed: sessions are single-use, start a new one")

	// ErrUnknownQueryKind indicates a query kind outside the supported set.
	// This is a programming error; no command is sent to the engine.
	ErrUnknownQueryKind = errors.New("unknown query kind")

	// ErrFileNotRegistered indicates a file id that was never opened in this session.
	ErrFileNotRegistered = errors.New("file not registered in session")

	// ErrTransportNotStarted indicates the transport has not been started.
	ErrTransportNotStarted = errors.New("transport not started")

	// ErrWriteAbandoned indicates a blocked write was given up and stdin
	// closed. The engine can no longer receive commands.
	ErrWriteAbandoned = errors.New("write abandoned, stdin closed")
)

// EngineStartupError indicates the engine binary could not be located, could
// not be executed, or did not reach a ready state in time.
type EngineStartupError struct {
	SearchedPaths []string
	Err           error
}

func (e *EngineStartupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grads engine failed to start: %v", e.Err)
	}

	return fmt.Sprintf("grads engine not found in: %v", e.SearchedPaths)
}

func (e *EngineStartupError) Unwrap() error {
	return e.Err
}

// IsGradsError implements GradsError.
func (e *EngineStartupError) IsGradsError() bool { return true }

// EngineCrashError indicates the engine process exited or its pipe broke while
// the session was in use. The session is unusable afterwards.
type EngineCrashError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EngineCrashError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("grads engine crashed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("grads engine crashed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *EngineCrashError) Unwrap() error {
	return e.Err
}

// IsGradsError implements GradsError.
func (e *EngineCrashError) IsGradsError() bool { return true }

// CommandTimeoutError indicates the response boundary was not observed in
// time. The engine is force-terminated and the session is marked dead.
type CommandTimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("command %q timed out after %s", e.Command, e.Timeout)
}

// IsGradsError implements GradsError.
func (e *CommandTimeoutError) IsGradsError() bool { return true }

// ParseError indicates a captured response did not match the expected grammar.
type ParseError struct {
	// Kind is the response kind being parsed (e.g. "dims", "file", "config").
	Kind string
	// Line and Word locate the offending token (1-based, 0 when not applicable).
	Line int
	Word int
	// Text is the offending token or line.
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("failed to parse %s response", e.Kind)
	if e.Line > 0 {
		msg += fmt.Sprintf(" at line %d", e.Line)
		if e.Word > 0 {
			msg += fmt.Sprintf(" word %d", e.Word)
		}
	}

	if e.Text != "" {
		msg += fmt.Sprintf(" (%q)", e.Text)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsGradsError implements GradsError.
func (e *ParseError) IsGradsError() bool { return true }

// FileNotFoundError indicates the engine reported that a file could not be opened.
type FileNotFoundError struct {
	Path   string
	Output []string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s%s", e.Path, excerpt(e.Output))
}

// IsGradsError implements GradsError.
func (e *FileNotFoundError) IsGradsError() bool { return true }

// UnsupportedFormatError indicates the engine could not interpret a file's format.
type UnsupportedFormatError struct {
	Path   string
	Output []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s%s", e.Path, excerpt(e.Output))
}

// IsGradsError implements GradsError.
func (e *UnsupportedFormatError) IsGradsError() bool { return true }

// UndefinedVariableError indicates an expression could not be evaluated by the engine.
type UndefinedVariableError struct {
	Expr   string
	Output []string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("cannot evaluate expression %q%s", e.Expr, excerpt(e.Output))
}

// IsGradsError implements GradsError.
func (e *UndefinedVariableError) IsGradsError() bool { return true }

// ShapeMismatchError indicates an array disagrees with its grid descriptor or
// with the destination variable's declared extents. Nothing is sent to the engine.
type ShapeMismatchError struct {
	Name string
	Want [4]int
	Got  [4]int
	// Detail is set for mismatches that are not plain extent differences
	// (e.g. coordinate vector lengths).
	Detail string
}

func (e *ShapeMismatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("shape mismatch for %q: %s", e.Name, e.Detail)
	}

	return fmt.Sprintf("shape mismatch for %q: want %v, got %v", e.Name, e.Want, e.Got)
}

// IsGradsError implements GradsError.
func (e *ShapeMismatchError) IsGradsError() bool { return true }

// CommandError indicates the engine reported a recognized error for a command
// issued by a facade operation. The session remains usable.
type CommandError struct {
	Command string
	Output  []string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q failed%s", e.Command, excerpt(e.Output))
}

// IsGradsError implements GradsError.
func (e *CommandError) IsGradsError() bool { return true }

// IsFatal reports whether err ends the session: startup, crash and timeout
// failures. Everything else leaves the session usable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := errors.AsType[*EngineStartupError](err); ok {
		return true
	}

	if _, ok := errors.AsType[*EngineCrashError](err); ok {
		return true
	}

	if _, ok := errors.AsType[*CommandTimeoutError](err); ok {
		return true
	}

	return errors.Is(err, ErrSessionClosed)
}

// excerpt renders the first non-blank output line for error messages.
func excerpt(lines []string) string {
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return ": " + trimmed
		}
	}

	return ""
}
