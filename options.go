package grads

import (
	"io"
	"log/slog"
	"time"

	"github.com/wagiedev/grads-sdk-go/internal/config"
)

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithBinPath sets the explicit path to the engine binary.
// If not set, the binary is searched in PATH and common install locations.
func WithBinPath(path string) Option {
	return func(o *Options) {
		o.BinPath = path
	}
}

// WithOptionsFile reads defaults from a YAML file. Explicit options win.
func WithOptionsFile(path string) Option {
	return func(o *Options) {
		o.OptionsFile = path
	}
}

// WithCwd sets the working directory for the engine process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the engine process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithEngineDirs sets GADDIR, GASCRP and GAUDFT for the engine. Empty
// values are left unset.
func WithEngineDirs(dataDir, scriptPath, udfTable string) Option {
	return func(o *Options) {
		o.DataDir = dataDir
		o.ScriptPath = scriptPath
		o.UDFTable = udfTable
	}
}

// ===== Display =====

// WithInteractive opens a graphics window instead of running in batch mode.
func WithInteractive(interactive bool) Option {
	return func(o *Options) {
		o.Interactive = interactive
	}
}

// WithPortrait selects the portrait page layout. Landscape is the default.
func WithPortrait() Option {
	return func(o *Options) {
		o.Orientation = config.OrientationPortrait
	}
}

// WithWindowGeometry sets the graphics window geometry, e.g. "800x600+0+0".
func WithWindowGeometry(geometry string) Option {
	return func(o *Options) {
		o.WindowGeometry = geometry
	}
}

// WithEcho copies every captured output line to w, or to os.Stdout when w is nil.
func WithEcho(w io.Writer) Option {
	return func(o *Options) {
		o.Echo = true
		o.EchoWriter = w
	}
}

// ===== Engine Startup =====

// WithInitialCommand runs command when the engine starts.
func WithInitialCommand(command string) Option {
	return func(o *Options) {
		o.InitialCommand = command
	}
}

// WithExtraArgs appends arguments verbatim to the engine command line.
func WithExtraArgs(args ...string) Option {
	return func(o *Options) {
		o.ExtraArgs = args
	}
}

// WithStderr sets a callback for each line the engine writes to stderr.
func WithStderr(handler func(string)) Option {
	return func(o *Options) {
		o.Stderr = handler
	}
}

// ===== Timeouts =====

// WithCommandTimeout bounds the wait for each reply. Expiry kills the engine
// and ends the session. Zero, the default, waits forever.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.CommandTimeout = timeout
	}
}

// WithStartupTimeout bounds the wait for the engine to become ready.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.StartupTimeout = timeout
	}
}

// WithShutdownTimeout bounds the polite quit on Close before the engine is killed.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ShutdownTimeout = timeout
	}
}

// ===== Protocol =====

// WithGrammar forces the reply grammar ("1" or "2"). By default it follows
// the engine version.
func WithGrammar(version string) Option {
	return func(o *Options) {
		o.Grammar = version
	}
}

// WithBoundaryCommand sets the marker command template. It must contain one
// %s and make the engine print it alone on a line.
func WithBoundaryCommand(template string) Option {
	return func(o *Options) {
		o.BoundaryCommand = template
	}
}

// ===== Data Transfer =====

// WithTransferDir sets the directory for Export/Import transfer files.
func WithTransferDir(dir string) Option {
	return func(o *Options) {
		o.TransferDir = dir
	}
}

// WithByteOrder forces the transfer byte order ("little" or "big"). By
// default it follows the engine's reported configuration.
func WithByteOrder(order string) Option {
	return func(o *Options) {
		o.ByteOrder = order
	}
}

// ===== Advanced =====

// WithTransport injects a custom transport implementation.
// This is primarily used for testing with mock transports.
func WithTransport(transport config.Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

type openOptions struct {
	format Format
}

func applyOpenOptions(opts []OpenOption) *openOptions {
	o := &openOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithFormat forces the open command instead of choosing it from the path.
func WithFormat(format Format) OpenOption {
	return func(o *openOptions) {
		o.format = format
	}
}
