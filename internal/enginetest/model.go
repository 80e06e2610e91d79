package enginetest

import (
	"bufio"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const timeLayout = "15Z02Jan2006"

// dimension is one axis of a gridded file: either linear or an explicit list.
type dimension struct {
	size   int
	start  float64
	step   float64
	levels []float64
}

func (d dimension) world(index float64) float64 {
	if d.levels == nil {
		return d.start + (index-1)*d.step
	}

	i := int(math.Round(index)) - 1
	i = max(0, min(i, len(d.levels)-1))

	return d.levels[i]
}

func (d dimension) index(world float64) float64 {
	if d.levels == nil {
		if d.step == 0 {
			return 1
		}

		return (world-d.start)/d.step + 1
	}

	best := 0
	for i, lev := range d.levels {
		if math.Abs(lev-world) < math.Abs(d.levels[best]-world) {
			best = i
		}
	}

	return float64(best + 1)
}

type timeDimension struct {
	size  int
	start time.Time
	step  func(time.Time, int) time.Time
}

func (d timeDimension) at(index float64) time.Time {
	return d.step(d.start, int(math.Round(index))-1)
}

type modelVar struct {
	name   string
	levels int
	units  string
	title  string
}

type model struct {
	title      string
	descriptor string
	binary     string
	undef      float64
	x, y, z    dimension
	t          timeDimension
	vars       []modelVar
}

func (m *model) varIndex(name string) int {
	for i, v := range m.vars {
		if strings.EqualFold(v.name, name) {
			return i
		}
	}

	return -1
}

// sampleModel is served for self-describing files.
func sampleModel(path string) *model {
	m, err := parseDescriptor(path, ModelDescriptor)
	if err != nil {
		panic(err)
	}

	m.descriptor = path
	m.binary = path

	return m
}

func parseDescriptor(path, text string) (*model, error) {
	m := &model{descriptor: path, undef: -9.99e8}

	scanner := bufio.NewScanner(strings.NewReader(text))
	inVars := false

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "*") {
			continue
		}

		if inVars {
			if strings.EqualFold(fields[0], "endvars") {
				inVars = false

				continue
			}

			if len(fields) < 3 {
				return nil, fmt.Errorf("bad variable record: %q", scanner.Text())
			}

			levels, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, err
			}

			m.vars = append(m.vars, modelVar{
				name:   fields[0],
				levels: levels,
				units:  fields[2],
				title:  strings.Join(fields[3:], " "),
			})

			continue
		}

		var err error

		switch strings.ToLower(fields[0]) {
		case "dset":
			m.binary = strings.Replace(fields[1], "^", filepath.Dir(path)+string(filepath.Separator), 1)
		case "title":
			m.title = strings.Join(fields[1:], " ")
		case "undef":
			m.undef, err = strconv.ParseFloat(fields[1], 64)
		case "xdef":
			m.x, err = parseDimension(fields)
		case "ydef":
			m.y, err = parseDimension(fields)
		case "zdef":
			m.z, err = parseDimension(fields)
		case "tdef":
			m.t, err = parseTimeDimension(fields)
		case "vars":
			inVars = true
		}

		if err != nil {
			return nil, err
		}
	}

	if m.x.size == 0 || m.y.size == 0 || m.z.size == 0 || m.t.size == 0 || len(m.vars) == 0 {
		return nil, fmt.Errorf("incomplete descriptor")
	}

	return m, nil
}

func parseDimension(fields []string) (dimension, error) {
	if len(fields) < 4 {
		return dimension{}, fmt.Errorf("short %s record", fields[0])
	}

	size, err := strconv.Atoi(fields[1])
	if err != nil {
		return dimension{}, err
	}

	values := make([]float64, 0, len(fields)-3)

	for _, f := range fields[3:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return dimension{}, err
		}

		values = append(values, v)
	}

	switch strings.ToLower(fields[2]) {
	case "linear":
		if len(values) < 2 {
			return dimension{}, fmt.Errorf("linear %s needs start and step", fields[0])
		}

		return dimension{size: size, start: values[0], step: values[1]}, nil
	case "levels":
		if len(values) != size {
			return dimension{}, fmt.Errorf("%s lists %d levels, want %d", fields[0], len(values), size)
		}

		return dimension{size: size, levels: values}, nil
	default:
		return dimension{}, fmt.Errorf("unknown mapping %q", fields[2])
	}
}

func parseTimeDimension(fields []string) (timeDimension, error) {
	if len(fields) < 5 {
		return timeDimension{}, fmt.Errorf("short tdef record")
	}

	size, err := strconv.Atoi(fields[1])
	if err != nil {
		return timeDimension{}, err
	}

	start, err := time.Parse(timeLayout, fields[3])
	if err != nil {
		return timeDimension{}, err
	}

	incr := strings.ToLower(fields[4])

	n, err := strconv.Atoi(strings.TrimRight(incr, "abcdefghijklmnopqrstuvwxyz"))
	if err != nil {
		return timeDimension{}, err
	}

	var step func(time.Time, int) time.Time

	switch {
	case strings.HasSuffix(incr, "mn"):
		step = func(t time.Time, k int) time.Time { return t.Add(time.Duration(k*n) * time.Minute) }
	case strings.HasSuffix(incr, "hr"):
		step = func(t time.Time, k int) time.Time { return t.Add(time.Duration(k*n) * time.Hour) }
	case strings.HasSuffix(incr, "dy"):
		step = func(t time.Time, k int) time.Time { return t.AddDate(0, 0, k*n) }
	case strings.HasSuffix(incr, "mo"):
		step = func(t time.Time, k int) time.Time { return t.AddDate(0, k*n, 0) }
	case strings.HasSuffix(incr, "yr"):
		step = func(t time.Time, k int) time.Time { return t.AddDate(k*n, 0, 0) }
	default:
		return timeDimension{}, fmt.Errorf("unknown time increment %q", fields[4])
	}

	return timeDimension{size: size, start: start, step: step}, nil
}

func formatTime(t time.Time) string {
	return strings.ToUpper(t.Format(timeLayout))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
