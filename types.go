package grads

import (
	"github.com/wagiedev/grads-sdk-go/internal/bridge"
	"github.com/wagiedev/grads-sdk-go/internal/config"
	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
	"github.com/wagiedev/grads-sdk-go/internal/parse"
	"github.com/wagiedev/grads-sdk-go/internal/session"
)

// Options holds every session setting. Prefer the With* options.
type Options = config.Options

// Transport defines the interface for engine communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., an engine on another host).
//
// The default implementation spawns the engine as a subprocess.
type Transport = config.Transport

// Output is the captured reply of one command, with 1-based line and word
// access.
type Output = linebuf.Output

// FileHandle describes a file opened in a session.
type FileHandle = session.FileHandle

// Format selects the engine command used to open a file.
type Format = session.Format

const (
	// FormatAuto picks sdfopen for NetCDF/HDF files and URLs, open otherwise.
	FormatAuto = session.FormatAuto
	// FormatDescriptor forces open (a descriptor file).
	FormatDescriptor = session.FormatDescriptor
	// FormatSelfDescribing forces sdfopen.
	FormatSelfDescribing = session.FormatSelfDescribing
	// FormatDescriptorOverlay forces xdfopen.
	FormatDescriptorOverlay = session.FormatDescriptorOverlay
)

// QueryKind names a structured query.
type QueryKind = session.QueryKind

const (
	QueryDims   = session.QueryDims
	QueryFile   = session.QueryFile
	QueryConfig = session.QueryConfig
)

// DimensionState is the engine's current dimension environment.
type DimensionState = parse.DimensionState

// Axis is one dimension of a DimensionState.
type Axis = parse.Axis

// AxisState tells whether an axis is fixed or varying.
type AxisState = parse.AxisState

const (
	AxisFixed   = parse.AxisFixed
	AxisVarying = parse.AxisVarying
)

// FileInfo is the engine's description of an open file.
type FileInfo = parse.FileInfo

// VarInfo describes one variable of a FileInfo.
type VarInfo = parse.VarInfo

// ConfigInfo is the engine's build configuration.
type ConfigInfo = parse.ConfigInfo

// Grid describes the coordinates of an Array.
type Grid = bridge.Grid

// Array is gridded data moved between the engine and the host. Data is
// ordered lon fastest, then lat, lev and time.
type Array = bridge.Array

// Display is the Import destination that renders instead of defining a variable.
const Display = bridge.Display

// NewArray returns an array over grid, checking that data fills it exactly.
func NewArray(grid Grid, data []float64) (*Array, error) {
	return bridge.NewArray(grid, data)
}
