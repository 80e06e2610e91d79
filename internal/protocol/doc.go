// Package protocol frames the engine's free-form stdout into one response per
// command.
//
// The engine has no request/response framing of its own. After each batch of
// commands the Channel sends a marker command that makes the engine print a
// unique boundary token on its own line. Everything read between the batch
// and that token is the response.
//
// The Channel handles:
//   - One ULID-based token per execution, so late output of an abandoned
//     call can never be mistaken for the current response
//   - Strict FIFO serialization of callers
//   - A single pump goroutine that drains stdout without ever blocking on
//     a caller
//   - Timeouts, which are fatal and kill the engine, and engine EOF, which
//     is reported as a crash
//
// Example usage:
//
//	transport := subprocess.NewProcess(log, options)
//	transport.Start(ctx)
//
//	ch := protocol.NewChannel(log, transport, options)
//	ch.Start()
//
//	out, err := ch.Execute(ctx, "q dims")
package protocol
