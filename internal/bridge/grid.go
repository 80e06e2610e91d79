package bridge

import (
	"fmt"
	"math"
	"time"
)

// Epoch is the origin of transfer time coordinates.
var Epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Grid describes the extents, coordinates and missing-value marker of a
// gridded field.
type Grid struct {
	NX int `json:"nx"`
	NY int `json:"ny"`
	NZ int `json:"nz"`
	NT int `json:"nt"`

	Lon  []float64 `json:"lon"`
	Lat  []float64 `json:"lat"`
	Lev  []float64 `json:"lev"`
	Time []float64 `json:"time"`

	Undef float64 `json:"undef"`
}

// Shape returns the extents in (x, y, z, t) order.
func (g *Grid) Shape() [4]int {
	return [4]int{g.NX, g.NY, g.NZ, g.NT}
}

// Size is the number of points in the grid.
func (g *Grid) Size() int {
	return g.NX * g.NY * g.NZ * g.NT
}

// Times converts the time coordinates to UTC instants.
func (g *Grid) Times() []time.Time {
	out := make([]time.Time, len(g.Time))
	for i, h := range g.Time {
		out[i] = Epoch.Add(time.Duration(h * float64(time.Hour)))
	}

	return out
}

// Validate checks that every extent is positive and that each coordinate
// vector matches its extent.
func (g *Grid) Validate() error {
	axes := []struct {
		name   string
		extent int
		coords []float64
	}{
		{"lon", g.NX, g.Lon},
		{"lat", g.NY, g.Lat},
		{"lev", g.NZ, g.Lev},
		{"time", g.NT, g.Time},
	}

	for _, a := range axes {
		if a.extent <= 0 {
			return fmt.Errorf("%s extent must be positive, got %d", a.name, a.extent)
		}

		if len(a.coords) != a.extent {
			return fmt.Errorf("%s has %d coordinates for extent %d", a.name, len(a.coords), a.extent)
		}
	}

	return nil
}

// Array is a gridded field held in host memory. Data is ordered with
// longitude varying fastest and time slowest. The caller owns it.
type Array struct {
	Data []float64 `json:"data"`
	Grid Grid      `json:"grid"`
}

// NewArray pairs data with grid after checking that they agree.
func NewArray(grid Grid, data []float64) (*Array, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	if len(data) != grid.Size() {
		return nil, fmt.Errorf("data has %d values for a %v grid", len(data), grid.Shape())
	}

	return &Array{Data: data, Grid: grid}, nil
}

// Shape returns the extents in (x, y, z, t) order.
func (a *Array) Shape() [4]int {
	return a.Grid.Shape()
}

// Len is the number of values.
func (a *Array) Len() int {
	return len(a.Data)
}

// At returns the value at zero-based grid indices.
func (a *Array) At(i, j, k, l int) float64 {
	g := &a.Grid

	return a.Data[((l*g.NZ+k)*g.NY+j)*g.NX+i]
}

// IsUndef reports whether v is the missing-value marker.
func (a *Array) IsUndef(v float64) bool {
	return v == a.Grid.Undef || math.IsNaN(v)
}

// Valid counts the values that are not missing.
func (a *Array) Valid() int {
	n := 0

	for _, v := range a.Data {
		if !a.IsUndef(v) {
			n++
		}
	}

	return n
}

// Min returns the smallest value, ignoring missing values. It is NaN when
// every value is missing.
func (a *Array) Min() float64 {
	return a.reduce(math.Min)
}

// Max returns the largest value, ignoring missing values. It is NaN when
// every value is missing.
func (a *Array) Max() float64 {
	return a.reduce(math.Max)
}

func (a *Array) reduce(pick func(x, y float64) float64) float64 {
	out := math.NaN()

	for _, v := range a.Data {
		if a.IsUndef(v) {
			continue
		}

		if math.IsNaN(out) {
			out = v
		} else {
			out = pick(out, v)
		}
	}

	return out
}

// Summary is a compact description of an array for display.
type Summary struct {
	Shape [4]int    `json:"shape"`
	Valid int       `json:"valid"`
	Undef float64   `json:"undef"`
	Min   *float64  `json:"min,omitempty"`
	Max   *float64  `json:"max,omitempty"`
	Lon   []float64 `json:"lonRange"`
	Lat   []float64 `json:"latRange"`
	Lev   []float64 `json:"levRange"`
	Time  []string  `json:"timeRange"`
}

// Summarize describes a without its data.
func Summarize(a *Array) Summary {
	s := Summary{
		Shape: a.Shape(),
		Valid: a.Valid(),
		Undef: a.Grid.Undef,
		Lon:   bounds(a.Grid.Lon),
		Lat:   bounds(a.Grid.Lat),
		Lev:   bounds(a.Grid.Lev),
	}

	if s.Valid > 0 {
		lo, hi := a.Min(), a.Max()
		s.Min, s.Max = &lo, &hi
	}

	if times := a.Grid.Times(); len(times) > 0 {
		s.Time = []string{
			times[0].Format(time.RFC3339),
			times[len(times)-1].Format(time.RFC3339),
		}
	}

	return s
}

func bounds(coords []float64) []float64 {
	if len(coords) == 0 {
		return nil
	}

	return []float64{coords[0], coords[len(coords)-1]}
}
