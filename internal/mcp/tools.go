package mcp

import (
	"context"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/grads-sdk-go/internal/bridge"
	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
	"github.com/wagiedev/grads-sdk-go/internal/session"
)

// Tool names.
const (
	ToolCmd           = "grads_cmd"
	ToolOpen          = "grads_open"
	ToolQuery         = "grads_query"
	ToolExportSummary = "grads_export_summary"
)

// Engine is the part of a session the tools drive.
type Engine interface {
	Execute(ctx context.Context, text string) (*linebuf.Output, error)
	Open(ctx context.Context, path string, format session.Format) (*session.FileHandle, error)
	Query(ctx context.Context, kind session.QueryKind) (any, error)
	Export(ctx context.Context, expr string) (*bridge.Array, error)
}

// Compile-time verification that a session satisfies Engine.
var _ Engine = (*session.Session)(nil)

// NewEngineServer returns a server with the engine tools registered.
func NewEngineServer(log *slog.Logger, name, version string, engine Engine) *Server {
	s := NewServer(log, name, version)
	RegisterTools(s, engine)

	return s
}

// RegisterTools adds the engine tools to s.
func RegisterTools(s *Server, engine Engine) {
	s.AddTool(&mcp.Tool{
		Name:        ToolCmd,
		Description: "Run one or more newline-separated GrADS commands and return the captured output.",
		InputSchema: ObjectSchema(map[string]Property{
			"command": {Type: "string", Description: "GrADS command text"},
		}),
	}, cmdHandler(engine))

	s.AddTool(&mcp.Tool{
		Name:        ToolOpen,
		Description: "Open a gridded data file and describe it.",
		InputSchema: ObjectSchema(map[string]Property{
			"path": {Type: "string", Description: "Descriptor, NetCDF/HDF file or OPeNDAP URL"},
			"format": {
				Type:        "string",
				Description: "Force the open command; chosen from the path when omitted",
				Enum:        []string{"open", "sdfopen", "xdfopen"},
				Optional:    true,
			},
		}),
	}, openHandler(engine))

	kinds := make([]string, 0, len(session.QueryKinds))
	for _, k := range session.QueryKinds {
		kinds = append(kinds, string(k))
	}

	s.AddTool(&mcp.Tool{
		Name:        ToolQuery,
		Description: "Return the dimension environment, default file or engine configuration as JSON.",
		InputSchema: ObjectSchema(map[string]Property{
			"kind": {Type: "string", Description: "What to query", Enum: kinds},
		}),
	}, queryHandler(engine))

	s.AddTool(&mcp.Tool{
		Name:        ToolExportSummary,
		Description: "Evaluate an expression in the current dimension environment and summarize the resulting grid.",
		InputSchema: ObjectSchema(map[string]Property{
			"expr": {Type: "string", Description: "GrADS expression, e.g. ps/100"},
		}),
	}, exportSummaryHandler(engine))
}

func cmdHandler(engine Engine) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Command string `json:"command"`
		}

		if err := ParseArguments(req, &args); err != nil {
			return ErrorResult(err.Error()), nil
		}

		if strings.TrimSpace(args.Command) == "" {
			return ErrorResult("command is required"), nil
		}

		out, err := engine.Execute(ctx, args.Command)
		if err != nil {
			return ErrorResult(err.Error()), nil
		}

		return TextResult(out.String()), nil
	}
}

func openHandler(engine Engine) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Path   string `json:"path"`
			Format string `json:"format"`
		}

		if err := ParseArguments(req, &args); err != nil {
			return ErrorResult(err.Error()), nil
		}

		if args.Path == "" {
			return ErrorResult("path is required"), nil
		}

		h, err := engine.Open(ctx, args.Path, session.Format(args.Format))
		if err != nil {
			return ErrorResult(err.Error()), nil
		}

		return JSONResult(h), nil
	}
}

func queryHandler(engine Engine) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Kind string `json:"kind"`
		}

		if err := ParseArguments(req, &args); err != nil {
			return ErrorResult(err.Error()), nil
		}

		record, err := engine.Query(ctx, session.QueryKind(args.Kind))
		if err != nil {
			return ErrorResult(err.Error()), nil
		}

		return JSONResult(record), nil
	}
}

func exportSummaryHandler(engine Engine) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args struct {
			Expr string `json:"expr"`
		}

		if err := ParseArguments(req, &args); err != nil {
			return ErrorResult(err.Error()), nil
		}

		if strings.TrimSpace(args.Expr) == "" {
			return ErrorResult("expr is required"), nil
		}

		a, err := engine.Export(ctx, args.Expr)
		if err != nil {
			return ErrorResult(err.Error()), nil
		}

		return JSONResult(bridge.Summarize(a)), nil
	}
}
