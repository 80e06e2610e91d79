package enginetest

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
)

const (
	version       = "2.0.2"
	legacyVersion = "1.9b4"
	features      = "readline printim grib2 netcdf hdf4-sds hdf5 opendap-grids,stn athena geotiff shapefile"
)

// axis is a grid index range; fixed when min equals max.
type axis struct {
	min, max float64
}

func (a axis) fixed() bool {
	return a.min == a.max
}

func (a axis) indices() []int {
	lo := int(math.Round(a.min))
	hi := int(math.Round(a.max))

	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}

	return out
}

type engine struct {
	out      *bufio.Writer
	errOut   io.Writer
	legacy   bool
	truncQ   bool
	order    binary.ByteOrder
	files    []*model
	dfile    int
	x, y, z  axis
	t, ens   axis
	defined  map[string]*field
	ipcPath  string
	ipcMode  string
	hung     bool
	exitCode int
	exiting  bool
}

// Serve runs the fake engine until stdin closes or a quit command arrives and
// returns the process exit status.
func Serve(args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	if getenv(EnvExitOnStart) == "1" {
		fmt.Fprintln(stderr, "gxopen: unable to initialize graphics")

		return 2
	}

	e := &engine{
		out:     bufio.NewWriter(stdout),
		errOut:  stderr,
		legacy:  getenv(EnvLegacy) == "1",
		truncQ:  getenv(EnvTruncatedFileQuery) == "1",
		order:   binary.LittleEndian,
		defined: make(map[string]*field),
	}

	if getenv(EnvBigEndian) == "1" {
		e.order = binary.BigEndian
	}

	batch, oriented, initial := false, false, ""

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-b":
			batch = true
		case "-l", "-p":
			oriented = true
		case "-c":
			if i+1 < len(args) {
				initial = args[i+1]
				i++
			}
		}
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	e.banner()

	if !oriented {
		e.println("Landscape mode? ('n' for portrait): ")
		e.flush()

		if !scanner.Scan() {
			return 0
		}
	}

	if batch {
		e.println("Running in Batch mode")
	} else {
		e.println("GX Package Initialization: Size = 11 8.5")
	}

	if initial != "" {
		e.run(initial)
	}

	e.flush()

	for !e.exiting && scanner.Scan() {
		if e.hung {
			continue
		}

		e.run(scanner.Text())
		e.flush()
	}

	e.flush()

	return e.exitCode
}

func (e *engine) println(format string, args ...any) {
	fmt.Fprintf(e.out, format+"\n", args...)
}

func (e *engine) flush() {
	_ = e.out.Flush()
}

func (e *engine) banner() {
	e.println("")
	e.println("Grid Analysis and Display System (GrADS) Version %s", e.version())
	e.println("Copyright (c) 1988-2011 by Brian Doty and the")
	e.println("Institute for Global Environment and Society (IGES)")
	e.println("GrADS comes with ABSOLUTELY NO WARRANTY")
	e.println("See file COPYRIGHT for more information")
	e.println("")
	e.println("%s", e.configLine())
	e.println("Issue 'q config' command for more detailed configuration information")
}

func (e *engine) version() string {
	if e.legacy {
		return legacyVersion
	}

	return version
}

func (e *engine) configLine() string {
	endian := "little-endian"
	if e.order == binary.BigEndian {
		endian = "big-endian"
	}

	return fmt.Sprintf("Config: v%s %s %s", e.version(), endian, features)
}

func (e *engine) run(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if strings.HasPrefix(line, "!") {
		e.shell(strings.TrimSpace(line[1:]))

		return
	}

	words := strings.Fields(line)
	rest := strings.TrimSpace(line[len(words[0]):])

	switch strings.ToLower(words[0]) {
	case "quit":
		e.exiting = true
	case "crash":
		fmt.Fprintln(e.errOut, "Segmentation fault (core dumped)")
		e.exitCode = 139
		e.exiting = true
	case "hang":
		e.hung = true
	case "q", "query":
		e.query(words[1:])
	case "open", "xdfopen":
		e.openDescriptor(rest)
	case "sdfopen":
		e.openSelfDescribing(rest)
	case "close":
		e.closeFile(words[1:])
	case "set":
		e.set(words[1:])
	case "d", "display":
		e.display(rest)
	case "define":
		e.define(rest)
	case "undefine":
		e.undefine(words[1:])
	case "reinit":
		e.reinit()
	case "ipc_open":
		e.ipcOpen(words[1:])
	case "ipc_close":
		e.ipcPath, e.ipcMode = "", ""
	case "c", "clear", "draw", "printim", "enable", "disable", "print":
	default:
		e.println("Unknown command: %s", words[0])
	}
}

func (e *engine) shell(command string) {
	if name, arg, _ := strings.Cut(command, " "); name == "echo" {
		e.println("%s", strings.TrimSpace(arg))

		return
	}

	e.println("sh: 1: %s: not found", command)
}

func (e *engine) query(args []string) {
	if len(args) == 0 {
		e.println("query error: Missing argument")

		return
	}

	switch strings.ToLower(args[0]) {
	case "config":
		e.println("%s", e.configLine())
		e.println("Grid Analysis and Display System (GrADS) Version %s", e.version())
		e.println("Copyright (c) 1988-2011 by Brian Doty and the")
		e.println("Institute for Global Environment and Society (IGES)")
	case "dims":
		e.queryDims()
	case "file":
		e.queryFile(args[1:])
	default:
		e.println("query error: Unknown query option: %s", args[0])
	}
}

func (e *engine) current() *model {
	if e.dfile < 1 || e.dfile > len(e.files) {
		return nil
	}

	return e.files[e.dfile-1]
}

func (e *engine) queryDims() {
	m := e.current()
	if m == nil {
		e.println("No files open")

		return
	}

	e.println("Default file number is: %d ", e.dfile)
	e.dimLine("X", "Lon", e.x, m.x.world)
	e.dimLine("Y", "Lat", e.y, m.y.world)
	e.dimLine("Z", "Lev", e.z, m.z.world)

	if e.t.fixed() {
		e.println("T is fixed     Time = %s  T = %s", formatTime(m.t.at(e.t.min)), formatNumber(e.t.min))
	} else {
		e.println("T is varying   Time = %s to %s  T = %s to %s",
			formatTime(m.t.at(e.t.min)), formatTime(m.t.at(e.t.max)), formatNumber(e.t.min), formatNumber(e.t.max))
	}

	if !e.legacy {
		e.println("E is fixed     Ens = 1  E = 1")
	}
}

func (e *engine) dimLine(name, coord string, a axis, world func(float64) float64) {
	if a.fixed() {
		e.println("%s is fixed     %s = %s  %s = %s", name, coord, formatNumber(world(a.min)), name, formatNumber(a.min))

		return
	}

	e.println("%s is varying   %s = %s to %s   %s = %s to %s",
		name, coord, formatNumber(world(a.min)), formatNumber(world(a.max)), name, formatNumber(a.min), formatNumber(a.max))
}

func (e *engine) queryFile(args []string) {
	if len(e.files) == 0 {
		e.println("No Files Open")

		return
	}

	fid := e.dfile

	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(e.files) {
			e.println("query error: File %s not open", args[0])

			return
		}

		fid = n
	}

	m := e.files[fid-1]

	e.println("File %d : %s", fid, m.title)

	if e.truncQ {
		return
	}

	e.println("  Descriptor: %s", m.descriptor)
	e.println("  Binary: %s", m.binary)
	e.println("  Type = Gridded")

	if e.legacy {
		e.println("  Xsize = %d  Ysize = %d  Zsize = %d  Tsize = %d", m.x.size, m.y.size, m.z.size, m.t.size)
	} else {
		e.println("  Xsize = %d  Ysize = %d  Zsize = %d  Tsize = %d  Esize = 1", m.x.size, m.y.size, m.z.size, m.t.size)
	}

	e.println("  Number of Variables = %d", len(m.vars))

	for _, v := range m.vars {
		e.println("     %s %d %s %s", v.name, v.levels, v.units, v.title)
	}
}

func (e *engine) openDescriptor(path string) {
	e.println("Scanning description file:  %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		e.println("Open Error:  Can't open description file")

		return
	}

	m, err := parseDescriptor(path, string(data))
	if err != nil {
		e.println("Open Error:  Invalid descriptor file: %v", err)

		return
	}

	e.register(m)
}

func (e *engine) openSelfDescribing(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		e.println("Error: nc_open failed to open file %s", path)
		e.println("sdfopen: No such file or directory")

		return
	}

	if !strings.HasPrefix(string(data), "CDF") && !strings.HasPrefix(string(data), "\x89HDF") {
		e.println("sdfopen error: %s is not a netCDF file", path)

		return
	}

	e.register(sampleModel(path))
}

func (e *engine) register(m *model) {
	e.files = append(e.files, m)
	fid := len(e.files)

	e.println("Data file %s is open as file %d", m.binary, fid)

	if fid == 1 {
		e.dfile = 1
		e.resetDims()
	}
}

func (e *engine) resetDims() {
	m := e.current()
	if m == nil {
		return
	}

	xmax := float64(m.x.size)
	if m.x.levels == nil && math.Abs(float64(m.x.size)*m.x.step-360) < 1e-9 {
		// Global grids wrap one extra point
		xmax++
	}

	e.x = axis{1, xmax}
	e.y = axis{1, float64(m.y.size)}
	e.z = axis{1, 1}
	e.t = axis{1, 1}
	e.ens = axis{1, 1}

	e.println("LON set to %s %s", formatNumber(m.x.world(e.x.min)), formatNumber(m.x.world(e.x.max)))
	e.println("LAT set to %s %s", formatNumber(m.y.world(e.y.min)), formatNumber(m.y.world(e.y.max)))
	e.println("LEV set to %s %s", formatNumber(m.z.world(1)), formatNumber(m.z.world(1)))
	e.println("Time values set: %s %s", formatTime(m.t.at(1)), formatTime(m.t.at(1)))
	e.println("E set to 1 1")
}

func (e *engine) closeFile(args []string) {
	if len(args) == 0 {
		e.println("close error: file number missing")

		return
	}

	fid, err := strconv.Atoi(args[0])
	if err != nil || fid < 1 || fid > len(e.files) {
		e.println("close error: File %s not open", args[0])

		return
	}

	if fid != len(e.files) {
		e.println("close error: only the last file opened (%d) may be closed", len(e.files))

		return
	}

	e.files = e.files[:fid-1]
	e.println("File %d has been closed", fid)

	if e.dfile > len(e.files) {
		e.dfile = len(e.files)
		e.resetDims()
	}
}

func (e *engine) set(args []string) {
	if len(args) < 2 {
		return
	}

	name := strings.ToLower(args[0])

	target, world := e.axisFor(name)
	if target == nil {
		// Graphics settings are accepted without comment
		return
	}

	if e.current() == nil {
		e.println("No files open yet")

		return
	}

	values := make([]float64, 0, 2)

	for _, arg := range args[1:min(len(args), 3)] {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			e.println("SET error: Invalid coordinate value %s", arg)

			return
		}

		values = append(values, v)
	}

	if len(values) == 1 {
		values = append(values, values[0])
	}

	lo, hi := values[0], values[1]
	if world != nil {
		lo, hi = world(lo), world(hi)
	}

	*target = axis{min(lo, hi), max(lo, hi)}

	e.println("%s set to %s %s", strings.ToUpper(name), formatNumber(values[0]), formatNumber(values[1]))
}

// axisFor maps a set keyword to the axis it changes and, for world
// coordinates, the conversion to a grid index.
func (e *engine) axisFor(name string) (*axis, func(float64) float64) {
	m := e.current()

	switch name {
	case "x":
		return &e.x, nil
	case "y":
		return &e.y, nil
	case "z":
		return &e.z, nil
	case "t":
		return &e.t, nil
	case "e":
		return &e.ens, nil
	}

	if m == nil {
		switch name {
		case "lon", "lat", "lev":
			return &e.x, nil
		}

		return nil, nil
	}

	switch name {
	case "lon":
		return &e.x, m.x.index
	case "lat":
		return &e.y, m.y.index
	case "lev":
		return &e.z, m.z.index
	default:
		return nil, nil
	}
}

func (e *engine) display(expr string) {
	expr = strings.TrimSpace(expr)

	if inner, ok := strings.CutPrefix(expr, "ipc_save("); ok && strings.HasSuffix(inner, ")") {
		e.ipcSave(strings.TrimSuffix(inner, ")"))

		return
	}

	var f *field

	if isLoad(expr) {
		loaded, ok := e.ipcLoad()
		if !ok {
			return
		}

		f = loaded
	} else {
		evaluated, errs := e.eval(expr)
		if errs != nil {
			e.displayError(expr, errs)

			return
		}

		f = evaluated
	}

	e.render(f)
}

func (e *engine) displayError(expr string, errs []string) {
	for _, line := range errs {
		e.println("%s", line)
	}

	e.println("DISPLAY error:  Invalid expression")
	e.println("  Expression = %s", expr)
}

func (e *engine) render(f *field) {
	values := f.valid()
	if len(values) == 0 {
		e.println("Entire grid undefined")

		return
	}

	if len(f.data) == 1 {
		e.println("Result value = %s", formatNumber(values[0]))

		return
	}

	lo, hi := slices.Min(values), slices.Max(values)
	e.println("Contouring: %s to %s interval %s", formatNumber(lo), formatNumber(hi), formatNumber((hi-lo)/10))
}

func isLoad(expr string) bool {
	return strings.ReplaceAll(expr, " ", "") == "ipc_load()"
}

func (e *engine) define(text string) {
	name, expr, ok := strings.Cut(text, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	expr = strings.TrimSpace(expr)

	if !ok || name == "" || expr == "" {
		e.println("DEFINE error:  Syntax Error: missing = or name")

		return
	}

	var f *field

	if isLoad(expr) {
		loaded, ok := e.ipcLoad()
		if !ok {
			return
		}

		f = loaded
	} else {
		evaluated, errs := e.eval(expr)
		if errs != nil {
			for _, line := range errs {
				e.println("%s", line)
			}

			e.println("DEFINE error:  Invalid expression")

			return
		}

		f = evaluated
	}

	e.defined[name] = f
	e.println("Define memory allocation size = %d bytes", f.size()*8)
}

func (e *engine) undefine(args []string) {
	if len(args) == 0 {
		e.println("undefine error: name missing")

		return
	}

	name := strings.ToLower(args[0])
	if _, ok := e.defined[name]; !ok {
		e.println("undefine error: %s is not a defined variable", name)

		return
	}

	delete(e.defined, name)
}

func (e *engine) reinit() {
	e.files = nil
	e.dfile = 0
	e.defined = make(map[string]*field)
	e.ipcPath, e.ipcMode = "", ""

	e.println("All files closed; all defined objects released;")
	e.println("All GrADS attributes have been reinitialized")
}

func (e *engine) ipcOpen(args []string) {
	if len(args) < 2 || (args[1] != "r" && args[1] != "w") {
		e.println("ipc_open error: usage ipc_open file r|w")

		return
	}

	if args[1] == "r" {
		if _, err := os.Stat(args[0]); err != nil {
			e.println("ipc_open error: cannot open %s", args[0])

			return
		}
	}

	e.ipcPath, e.ipcMode = args[0], args[1]
}

func (e *engine) ipcSave(expr string) {
	if e.ipcMode != "w" {
		e.println("ipc_save error: no transfer file open for writing")

		return
	}

	f, errs := e.eval(expr)
	if errs != nil {
		e.displayError(expr, errs)

		return
	}

	if err := writeTransfer(e.ipcPath, e.order, f); err != nil {
		e.println("ipc_save error: %v", err)

		return
	}

	e.println("ipc_save: %dx%dx%dx%d grid written", f.nx, f.ny, f.nz, f.nt)
}

func (e *engine) ipcLoad() (*field, bool) {
	if e.ipcMode != "r" {
		e.println("ipc_load error: no transfer file open for reading")

		return nil, false
	}

	f, err := readTransfer(e.ipcPath, e.order)
	if err != nil {
		e.println("ipc_load error: %v", err)

		return nil, false
	}

	return f, true
}

// eval evaluates a small expression language: numbers, file variables,
// defined variables and binary + - * / combinations of those. A nil error
// slice means success.
func (e *engine) eval(expr string) (*field, []string) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, []string{"Syntax Error:  Invalid Operand"}
	}

	if v, err := strconv.ParseFloat(expr, 64); err == nil {
		f := e.region(func(int, int, int, int) float64 { return v })

		return f, nil
	}

	if i := operatorIndex(expr); i > 0 {
		left, lerrs := e.eval(expr[:i])
		if lerrs != nil {
			return nil, lerrs
		}

		right, rerrs := e.eval(expr[i+1:])
		if rerrs != nil {
			return nil, rerrs
		}

		return combine(left, right, expr[i])
	} else if i == 0 {
		return nil, []string{"Syntax Error:  Invalid Operand"}
	}

	name := strings.ToLower(expr)

	if f, ok := e.defined[name]; ok {
		clone := *f
		clone.data = slices.Clone(f.data)

		return &clone, nil
	}

	m := e.current()
	if m == nil {
		return nil, []string{fmt.Sprintf("Undefined variable: %s", expr)}
	}

	idx := m.varIndex(name)
	if idx < 0 {
		return nil, []string{fmt.Sprintf("Undefined variable: %s", expr)}
	}

	return e.region(func(i, j, k, l int) float64 {
		return float64(idx)*10000 + float64(l)*1000 + float64(k)*100 + float64(j) + float64(i)*0.5
	}), nil
}

// operatorIndex returns the position of the last binary operator, -1 when
// there is none. Signs inside exponents such as 1e-5 are skipped.
func operatorIndex(expr string) int {
	for i := len(expr) - 1; i >= 0; i-- {
		switch expr[i] {
		case '+', '-':
			if i >= 2 && (expr[i-1] == 'e' || expr[i-1] == 'E') && expr[i-2] >= '0' && expr[i-2] <= '9' {
				continue
			}

			return i
		case '*', '/':
			return i
		}
	}

	return -1
}

func combine(a, b *field, op byte) (*field, []string) {
	out := a

	switch {
	case len(b.data) == len(a.data):
	case len(b.data) == 1:
	case len(a.data) == 1:
		out = b
	default:
		return nil, []string{"Data Request Error:  Grids do not conform"}
	}

	result := *out
	result.data = make([]float64, len(out.data))

	for n := range result.data {
		x := a.data[min(n, len(a.data)-1)]
		y := b.data[min(n, len(b.data)-1)]

		switch op {
		case '+':
			result.data[n] = x + y
		case '-':
			result.data[n] = x - y
		case '*':
			result.data[n] = x * y
		case '/':
			if y == 0 {
				result.data[n] = result.undef
			} else {
				result.data[n] = x / y
			}
		}
	}

	return &result, nil
}

// region builds a field over the current dimension environment.
func (e *engine) region(value func(i, j, k, l int) float64) *field {
	m := e.current()
	if m == nil {
		return &field{
			nx: 1, ny: 1, nz: 1, nt: 1,
			lon: []float64{0}, lat: []float64{0}, lev: []float64{0}, time: []float64{0},
			undef: -9.99e8,
			data:  []float64{value(1, 1, 1, 1)},
		}
	}

	xs, ys, zs, ts := e.x.indices(), e.y.indices(), e.z.indices(), e.t.indices()

	f := &field{nx: len(xs), ny: len(ys), nz: len(zs), nt: len(ts), undef: m.undef}

	for _, i := range xs {
		f.lon = append(f.lon, m.x.world(float64(i)))
	}

	for _, j := range ys {
		f.lat = append(f.lat, m.y.world(float64(j)))
	}

	for _, k := range zs {
		f.lev = append(f.lev, m.z.world(float64(k)))
	}

	for _, l := range ts {
		f.time = append(f.time, hoursSinceEpoch(m.t.at(float64(l))))
	}

	f.data = make([]float64, 0, f.size())

	for _, l := range ts {
		for _, k := range zs {
			for _, j := range ys {
				for _, i := range xs {
					f.data = append(f.data, value(i, j, k, l))
				}
			}
		}
	}

	return f
}
