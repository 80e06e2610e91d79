// Package session implements the engine Session: lifecycle, the file
// registry and the structured operations built on the command channel.
//
// A Session owns one engine process. Start launches it and waits for a
// readiness probe; Close quits it. In between, every operation runs under
// one serialization slot, so multi-command operations such as Open are
// never interleaved with other callers.
//
// Errors fall into two groups. Engine crashes, timeouts and a closed
// session end the session and every later call fails at once without I/O.
// Everything else (files that cannot be opened, expressions that cannot be
// evaluated, replies that cannot be parsed) fails only the call at hand.
package session
