package config

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultStartupTimeout bounds the wait for the engine's first response.
	DefaultStartupTimeout = 30 * time.Second

	// DefaultShutdownTimeout is how long a polite quit may take before the
	// engine is killed.
	DefaultShutdownTimeout = 2 * time.Second

	// DefaultBoundaryCommand is the marker command template. The engine's
	// shell escape prints the token verbatim on its own line.
	DefaultBoundaryCommand = "!echo %s"

	// DefaultQuitCommand asks the engine to exit.
	DefaultQuitCommand = "quit"
)

// Options configures an engine session.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger `yaml:"-"`

	// BinPath is the explicit path to the engine binary.
	// If empty, the binary is searched in PATH and common locations.
	BinPath string `yaml:"binPath"`

	// Interactive opens a graphics window. When false the engine runs in
	// batch mode (-b).
	Interactive bool `yaml:"interactive"`

	// Orientation selects the page layout ("landscape" or "portrait").
	// Empty means landscape; one is always passed so the engine does not prompt.
	Orientation string `yaml:"orientation"`

	// WindowGeometry is passed as -g (e.g. "800x600+0+0") when set.
	WindowGeometry string `yaml:"windowGeometry"`

	// Echo writes every captured output line to EchoWriter.
	Echo bool `yaml:"echo"`

	// EchoWriter receives echoed output. Defaults to os.Stdout when Echo is set.
	EchoWriter io.Writer `yaml:"-"`

	// InitialCommand is run by the engine at startup (-c).
	InitialCommand string `yaml:"initialCommand"`

	// ExtraArgs are appended verbatim to the engine command line.
	ExtraArgs []string `yaml:"extraArgs"`

	// Env provides additional environment variables for the engine process.
	Env map[string]string `yaml:"env"`

	// Cwd sets the working directory for the engine process.
	Cwd string `yaml:"cwd"`

	// DataDir, ScriptPath and UDFTable populate GADDIR, GASCRP and GAUDFT.
	DataDir    string `yaml:"dataDir"`
	ScriptPath string `yaml:"scriptPath"`
	UDFTable   string `yaml:"udfTable"`

	// CommandTimeout bounds the wait for each response boundary.
	// Zero disables the timeout. Expiry is fatal for the session.
	CommandTimeout time.Duration `yaml:"commandTimeout"`

	// StartupTimeout bounds the readiness probe. Defaults to DefaultStartupTimeout.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// ShutdownTimeout bounds the polite quit on Close. Defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Stderr is a callback function for handling stderr output.
	Stderr func(string) `yaml:"-"`

	// Grammar selects the response grammar version ("2", "1").
	// Empty selects the newest.
	Grammar string `yaml:"grammar"`

	// TransferDir holds the side-channel files used by Export/Import.
	// Defaults to os.TempDir().
	TransferDir string `yaml:"transferDir"`

	// ByteOrder forces the transfer byte order ("little" or "big").
	// Empty follows the engine's reported configuration.
	ByteOrder string `yaml:"byteOrder"`

	// BoundaryCommand is a fmt template with one %s for the boundary token.
	// Defaults to DefaultBoundaryCommand.
	BoundaryCommand string `yaml:"boundaryCommand"`

	// OptionsFile is a YAML file whose values are used for every field left
	// unset by explicit options.
	OptionsFile string `yaml:"-"`

	// Transport allows injecting a custom transport implementation.
	// If nil, the default subprocess transport is created automatically.
	Transport Transport `yaml:"-"`
}

// Overlay returns a copy of base with every non-zero field of o applied on top.
func (o *Options) Overlay(base *Options) *Options {
	merged := *base

	if o.Logger != nil {
		merged.Logger = o.Logger
	}

	if o.BinPath != "" {
		merged.BinPath = o.BinPath
	}

	merged.Interactive = merged.Interactive || o.Interactive
	merged.Echo = merged.Echo || o.Echo

	if o.Orientation != "" {
		merged.Orientation = o.Orientation
	}

	if o.WindowGeometry != "" {
		merged.WindowGeometry = o.WindowGeometry
	}

	if o.EchoWriter != nil {
		merged.EchoWriter = o.EchoWriter
	}

	if o.InitialCommand != "" {
		merged.InitialCommand = o.InitialCommand
	}

	if len(o.ExtraArgs) > 0 {
		merged.ExtraArgs = o.ExtraArgs
	}

	if len(o.Env) > 0 {
		env := make(map[string]string, len(base.Env)+len(o.Env))
		for k, v := range base.Env {
			env[k] = v
		}

		for k, v := range o.Env {
			env[k] = v
		}

		merged.Env = env
	}

	if o.Cwd != "" {
		merged.Cwd = o.Cwd
	}

	if o.DataDir != "" {
		merged.DataDir = o.DataDir
	}

	if o.ScriptPath != "" {
		merged.ScriptPath = o.ScriptPath
	}

	if o.UDFTable != "" {
		merged.UDFTable = o.UDFTable
	}

	if o.CommandTimeout != 0 {
		merged.CommandTimeout = o.CommandTimeout
	}

	if o.StartupTimeout != 0 {
		merged.StartupTimeout = o.StartupTimeout
	}

	if o.ShutdownTimeout != 0 {
		merged.ShutdownTimeout = o.ShutdownTimeout
	}

	if o.Stderr != nil {
		merged.Stderr = o.Stderr
	}

	if o.Grammar != "" {
		merged.Grammar = o.Grammar
	}

	if o.TransferDir != "" {
		merged.TransferDir = o.TransferDir
	}

	if o.ByteOrder != "" {
		merged.ByteOrder = o.ByteOrder
	}

	if o.BoundaryCommand != "" {
		merged.BoundaryCommand = o.BoundaryCommand
	}

	if o.Transport != nil {
		merged.Transport = o.Transport
	}

	merged.OptionsFile = ""

	return &merged
}

// WithDefaults fills unset timeouts and templates.
func (o *Options) WithDefaults() *Options {
	out := *o

	if out.StartupTimeout == 0 {
		out.StartupTimeout = DefaultStartupTimeout
	}

	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = DefaultShutdownTimeout
	}

	if out.BoundaryCommand == "" {
		out.BoundaryCommand = DefaultBoundaryCommand
	}

	out.Orientation = NormalizeOrientation(out.Orientation)

	return &out
}
