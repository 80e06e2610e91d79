// Package errors defines error types for the GrADS SDK.
//
// Errors fall into two groups. Session-lifecycle failures (EngineStartupError,
// EngineCrashError, CommandTimeoutError) are fatal: the session cannot be used
// afterwards. Content failures (ParseError, FileNotFoundError,
// UnsupportedFormatError, UndefinedVariableError, ShapeMismatchError,
// CommandError) are local to the call and leave the session usable.
//
// All error types support error unwrapping and can be checked using
// errors.Is, errors.As, and errors.AsType.
package errors
