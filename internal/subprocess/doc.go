// Package subprocess provides the process-backed transport for the GrADS engine.
//
// Process implements config.Transport by spawning the engine as a child
// process and exchanging text lines over its stdin and stdout. It drains
// stdout and stderr continuously, records how the engine exited, and shuts it
// down with a polite quit followed by a kill.
package subprocess
