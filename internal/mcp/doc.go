// Package mcp exposes an engine session as Model Context Protocol tools.
//
// The server keeps its own tool registry so tools can be called directly,
// and hands the same tools to a go-sdk server when serving a client over
// stdio or any other transport. Tool failures, engine errors included, are
// reported as error results rather than protocol errors.
package mcp
