package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	grads "github.com/wagiedev/grads-sdk-go"
	"github.com/wagiedev/grads-sdk-go/internal/bridge"
	"github.com/wagiedev/grads-sdk-go/internal/mcp"
	"github.com/wagiedev/grads-sdk-go/internal/tracing"
)

const version = "0.3.0"

// setupFlags prepare the dimension environment before a query or export.
var setupFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:  "open",
		Usage: "Open a data file first. May be repeated.",
	},
	&cli.StringSliceFlag{
		Name:  "exec",
		Usage: "Run a command after opening files, e.g. \"set lon -180 180\". May be repeated.",
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "grads",
		Usage:   "drive a GrADS engine from the shell",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bin",
				Usage:   "Path to the engine binary. Searched in PATH when empty.",
				EnvVars: []string{"GRADS_BIN"},
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML options file.",
			},
			&cli.BoolFlag{
				Name:  "batch",
				Usage: "Run without a graphics window.",
				Value: true,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-command timeout. Expiry kills the engine. 0 waits forever.",
			},
			&cli.StringFlag{
				Name:  "transfer-dir",
				Usage: "Directory for export/import transfer files.",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output to stderr.",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "Write OpenTelemetry spans to stderr.",
			},
		},
		Before: func(c *cli.Context) error {
			if !c.Bool("trace") {
				return nil
			}

			shutdown, err := tracing.Init("grads", version, c.App.ErrWriter)
			if err != nil {
				return fmt.Errorf("starting tracing: %w", err)
			}

			c.App.Metadata["tracingShutdown"] = shutdown

			return nil
		},
		After: func(c *cli.Context) error {
			if shutdown, ok := c.App.Metadata["tracingShutdown"].(tracing.ShutdownFunc); ok {
				return shutdown(context.WithoutCancel(c.Context))
			}

			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run commands and print the captured output. Reads stdin when no command is given.",
				ArgsUsage: "[command...]",
				Action:    runAction,
			},
			{
				Name:      "query",
				Usage:     "Print a structured query as JSON.",
				ArgsUsage: "dims|file|config",
				Flags:     setupFlags,
				Action:    queryAction,
			},
			{
				Name:      "export",
				Usage:     "Evaluate an expression and print a summary of the grid as JSON.",
				ArgsUsage: "<expr>",
				Flags:     setupFlags,
				Action:    exportAction,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the session as MCP tools over stdio.",
				Action: mcpAction,
			},
		},
		Metadata: map[string]any{},
		// Engine commands contain commas.
		DisableSliceFlagSeparator: true,
	}
}

func logger(c *cli.Context) *slog.Logger {
	if !c.Bool("verbose") {
		return grads.NopLogger()
	}

	return slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// startSession starts an engine configured from the global flags.
func startSession(c *cli.Context) (grads.Session, error) {
	log := logger(c)

	opts := []grads.Option{
		grads.WithLogger(log),
		grads.WithInteractive(!c.Bool("batch")),
		grads.WithStderr(func(line string) {
			log.Warn("Engine stderr", "line", line)
		}),
	}

	if bin := c.String("bin"); bin != "" {
		opts = append(opts, grads.WithBinPath(bin))
	}

	if path := c.String("config"); path != "" {
		opts = append(opts, grads.WithOptionsFile(path))
	}

	if timeout := c.Duration("timeout"); timeout > 0 {
		opts = append(opts, grads.WithCommandTimeout(timeout))
	}

	if dir := c.String("transfer-dir"); dir != "" {
		opts = append(opts, grads.WithTransferDir(dir))
	}

	return grads.Start(c.Context, opts...)
}

// withSession starts a session, applies the setup flags and runs fn.
func withSession(c *cli.Context, fn func(grads.Session) error) error {
	s, err := startSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, path := range c.StringSlice("open") {
		if _, err := s.Open(c.Context, path); err != nil {
			return err
		}
	}

	for _, command := range c.StringSlice("exec") {
		if err := s.Cmd(c.Context, command); err != nil {
			return err
		}
	}

	return fn(s)
}

func runAction(c *cli.Context) error {
	commands := c.Args().Slice()

	if len(commands) == 0 {
		scanner := bufio.NewScanner(c.App.Reader)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				commands = append(commands, line)
			}
		}

		if err := scanner.Err(); err != nil {
			return fmt.Errorf("reading commands: %w", err)
		}
	}

	return withSession(c, func(s grads.Session) error {
		for _, command := range commands {
			out, err := s.Execute(c.Context, command)
			if err != nil {
				return err
			}

			if out.LineCount() > 0 {
				fmt.Fprintln(c.App.Writer, out.String())
			}
		}

		return nil
	})
}

func queryAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: grads query dims|file|config", 2)
	}

	kind := grads.QueryKind(c.Args().First())

	return withSession(c, func(s grads.Session) error {
		record, err := s.Query(c.Context, kind)
		if err != nil {
			return err
		}

		return writeJSON(c.App.Writer, record)
	})
}

func exportAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: grads export <expr>", 2)
	}

	expr := c.Args().First()

	return withSession(c, func(s grads.Session) error {
		a, err := s.Export(c.Context, expr)
		if err != nil {
			return err
		}

		return writeJSON(c.App.Writer, bridge.Summarize(a))
	})
}

func mcpAction(c *cli.Context) error {
	s, err := startSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	server := mcp.NewEngineServer(logger(c), "grads", version, engineAdapter{s})

	return server.Run(c.Context, &mcpsdk.StdioTransport{})
}

// engineAdapter maps the public Open options onto the tool interface.
type engineAdapter struct {
	grads.Session
}

func (e engineAdapter) Open(ctx context.Context, path string, format grads.Format) (*grads.FileHandle, error) {
	return e.Session.Open(ctx, path, grads.WithFormat(format))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
