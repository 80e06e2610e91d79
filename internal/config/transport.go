// Package config provides configuration types for the GrADS SDK.
package config

import "context"

// Transport defines the interface for engine communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., an engine behind ssh).
//
// The default implementation is subprocess.Process which spawns the engine.
// Custom transports can be injected via Options.Transport.
type Transport interface {
	// Start launches the engine and begins draining its output streams.
	Start(ctx context.Context) error

	// Lines yields the engine's stdout one line at a time, without the line
	// terminator. The channel is closed when stdout reaches EOF.
	Lines() <-chan string

	// SendLine writes one command line to the engine's stdin. A line
	// terminator is appended. Must be safe for concurrent use.
	SendLine(ctx context.Context, line string) error

	// Done is closed once the engine has exited.
	Done() <-chan struct{}

	// ExitError describes how the engine exited. It is nil while the engine runs
	// and after an intentional shutdown.
	ExitError() error

	// Terminate asks the engine to quit with quitCommand, force-kills it if it
	// has not exited when ctx expires, and releases all stream handles.
	// It's safe to call Terminate multiple times.
	Terminate(ctx context.Context, quitCommand string) error

	// Kill force-terminates the engine immediately.
	Kill() error

	// Pid returns the engine's process id, or 0 when unknown.
	Pid() int
}
