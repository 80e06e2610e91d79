package parse

import (
	"fmt"

	"github.com/wagiedev/grads-sdk-go/internal/linebuf"
)

// ParseDims parses a "q dims" reply.
func ParseDims(out *linebuf.Output, g *Grammar) (*DimensionState, error) {
	r, err := locate("dims", out, g.DimsAnchor)
	if err != nil {
		return nil, err
	}

	state := &DimensionState{
		E: Axis{Name: "E", State: AxisFixed, Min: 1, Max: 1, IndexMin: 1, IndexMax: 1},
	}

	if state.DefaultFile, err = r.integer(1, g.DimsDefaultFileWord); err != nil {
		return nil, err
	}

	targets := map[string]*Axis{"X": &state.X, "Y": &state.Y, "Z": &state.Z, "T": &state.T, "E": &state.E}

	for i, name := range g.DimsAxes {
		axis, err := parseAxis(r, g, 2+i, name)
		if err != nil {
			return nil, err
		}

		*targets[name] = axis
	}

	return state, nil
}

func parseAxis(r *reader, g *Grammar, line int, name string) (Axis, error) {
	axis := Axis{Name: name}

	label, err := r.word(line, 1)
	if err != nil {
		return axis, err
	}

	if label != name {
		return axis, r.fail(line, 1, fmt.Errorf("expected %s axis", name))
	}

	state, err := r.word(line, 3)
	if err != nil {
		return axis, err
	}

	isTime := name == "T"

	switch AxisState(state) {
	case AxisFixed:
		axis.State = AxisFixed

		if isTime {
			axis.TimeMin, err = r.word(line, g.FixedValueWord)
			axis.TimeMax = axis.TimeMin
		} else {
			axis.Min, err = r.number(line, g.FixedValueWord)
			axis.Max = axis.Min
		}

		if err != nil {
			return axis, err
		}

		if axis.IndexMin, err = r.number(line, g.FixedIndexWord); err != nil {
			return axis, err
		}

		axis.IndexMax = axis.IndexMin
	case AxisVarying:
		axis.State = AxisVarying

		if isTime {
			if axis.TimeMin, err = r.word(line, g.VaryingMinWord); err != nil {
				return axis, err
			}

			axis.TimeMax, err = r.word(line, g.VaryingMaxWord)
		} else {
			if axis.Min, err = r.number(line, g.VaryingMinWord); err != nil {
				return axis, err
			}

			axis.Max, err = r.number(line, g.VaryingMaxWord)
		}

		if err != nil {
			return axis, err
		}

		if axis.IndexMin, err = r.number(line, g.VaryingIndexMinWord); err != nil {
			return axis, err
		}

		if axis.IndexMax, err = r.number(line, g.VaryingIndexMaxWord); err != nil {
			return axis, err
		}
	default:
		return axis, r.fail(line, 3, fmt.Errorf("unknown axis state"))
	}

	return axis, nil
}
