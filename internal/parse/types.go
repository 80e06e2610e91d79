package parse

// AxisState tells whether a dimension is pinned to one value or spans a range.
type AxisState string

const (
	// AxisFixed marks a dimension pinned to a single value.
	AxisFixed AxisState = "fixed"
	// AxisVarying marks a dimension spanning a range.
	AxisVarying AxisState = "varying"
)

// Axis is one dimension of the engine's current dimension environment.
type Axis struct {
	Name  string    `json:"name"`
	State AxisState `json:"state"`

	// Min and Max are world coordinates (lon, lat, lev or ensemble number).
	// They are equal when the axis is fixed. Unused for the time axis.
	Min float64 `json:"min"`
	Max float64 `json:"max"`

	// TimeMin and TimeMax hold the engine's time strings (e.g. 00Z01JAN1987)
	// for the time axis.
	TimeMin string `json:"timeMin,omitempty"`
	TimeMax string `json:"timeMax,omitempty"`

	// IndexMin and IndexMax are grid index coordinates.
	IndexMin float64 `json:"indexMin"`
	IndexMax float64 `json:"indexMax"`
}

// Fixed reports whether the axis is pinned to one value.
func (a Axis) Fixed() bool {
	return a.State == AxisFixed
}

// DimensionState is the engine's current dimension environment.
type DimensionState struct {
	DefaultFile int  `json:"defaultFile"`
	X           Axis `json:"x"`
	Y           Axis `json:"y"`
	Z           Axis `json:"z"`
	T           Axis `json:"t"`
	E           Axis `json:"e"`
}

// VarInfo describes one variable of an open file.
type VarInfo struct {
	Name   string `json:"name"`
	Levels int    `json:"levels"`
	Units  string `json:"units"`
	Title  string `json:"title"`
}

// FileInfo is the engine's description of one open file.
type FileInfo struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Descriptor string    `json:"descriptor"`
	Binary     string    `json:"binary"`
	Type       string    `json:"type"`
	NX         int       `json:"nx"`
	NY         int       `json:"ny"`
	NZ         int       `json:"nz"`
	NT         int       `json:"nt"`
	NE         int       `json:"ne"`
	Vars       []VarInfo `json:"vars"`
}

// ConfigInfo is the engine's build configuration.
type ConfigInfo struct {
	// Version is the engine version without the leading "v" (e.g. 2.0.2).
	Version string `json:"version"`
	// Features lists the build options reported after the version.
	Features []string `json:"features"`
	// Values maps "version" and "endian" to their values and every feature
	// to "enabled".
	Values map[string]string `json:"values"`
	// Lines is the raw reply.
	Lines []string `json:"lines"`
}

// ByteOrder returns "little", "big" or "" when the engine did not say.
func (c *ConfigInfo) ByteOrder() string {
	if c == nil {
		return ""
	}

	return c.Values["endian"]
}
