package enginetest

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, env map[string]string, args []string, commands ...string) (string, string, int) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	code := Serve(args, strings.NewReader(strings.Join(commands, "\n")+"\n"), &stdout, &stderr, func(key string) string {
		return env[key]
	})

	return stdout.String(), stderr.String(), code
}

func TestServe_BannerAndEcho(t *testing.T) {
	out, _, code := serve(t, nil, []string{"-b", "-l"}, "!echo __MARK__", "quit", "!echo after")

	require.Equal(t, 0, code)
	require.Contains(t, out, "Config: v2.0.2 little-endian")
	require.Contains(t, out, "Running in Batch mode")
	require.Contains(t, out, "\n__MARK__\n")
	require.NotContains(t, out, "after")
	require.NotContains(t, out, "Landscape mode?")
}

func TestServe_PromptsForOrientation(t *testing.T) {
	out, _, _ := serve(t, nil, []string{"-b"}, "", "q config")

	require.Contains(t, out, "Landscape mode?")
}

func TestServe_OpenModelAndQuery(t *testing.T) {
	ctl := WriteModel(t)

	out, _, _ := serve(t, nil, []string{"-b", "-l"},
		"open "+ctl,
		"q file 1",
		"set lon -180 180",
		"q dims",
	)

	require.Contains(t, out, "is open as file 1")
	require.Contains(t, out, "File 1 : Test Data Set")
	require.Contains(t, out, "Xsize = 72  Ysize = 46  Zsize = 7  Tsize = 5  Esize = 1")
	require.Contains(t, out, "Number of Variables = 8")
	require.Contains(t, out, "     hus 7 99 Specific Humidity")
	require.Contains(t, out, "X is varying   Lon = -180 to 180   X = -35 to 37")
	require.Contains(t, out, "T is fixed     Time = 00Z01JAN1987  T = 1")
	require.Contains(t, out, "E is fixed")
}

func TestServe_Legacy(t *testing.T) {
	ctl := WriteModel(t)

	out, _, _ := serve(t, map[string]string{EnvLegacy: "1"}, []string{"-b", "-l"}, "open "+ctl, "q file", "q dims")

	require.Contains(t, out, "Config: v1.9b4")
	require.Contains(t, out, "Tsize = 5\n")
	require.NotContains(t, out, "E is fixed")
}

func TestServe_OpenErrors(t *testing.T) {
	out, _, _ := serve(t, nil, []string{"-b", "-l"},
		"open wrong_file.ctl",
		"sdfopen "+WriteGarbage(t, "bad.nc"),
		"sdfopen "+filepath.Join(t.TempDir(), "missing.nc"),
	)

	require.Contains(t, out, "Open Error:  Can't open description file")
	require.Contains(t, out, "is not a netCDF file")
	require.Contains(t, out, "No such file or directory")
}

func TestServe_DisplayAndDefine(t *testing.T) {
	ctl := WriteModel(t)

	out, _, _ := serve(t, nil, []string{"-b", "-l"},
		"open "+ctl,
		"display nope",
		"display ps +",
		"define tc = ts - 273.15",
		"set x 1",
		"set y 1",
		"display 2 * 3",
		"undefine tc",
		"undefine tc",
	)

	require.Contains(t, out, "Undefined variable: nope")
	require.Contains(t, out, "Syntax Error:  Invalid Operand")
	require.Contains(t, out, "Define memory allocation size = ")
	require.Contains(t, out, "Result value = 6")
	require.Contains(t, out, "undefine error: tc is not a defined variable")
}

func TestServe_TransferRoundTrip(t *testing.T) {
	ctl := WriteModel(t)
	path := filepath.Join(t.TempDir(), "x.ipc")

	out, _, _ := serve(t, map[string]string{EnvBigEndian: "1"}, []string{"-b", "-l"},
		"open "+ctl,
		"ipc_open "+path+" w",
		"display ipc_save(ps)",
		"ipc_close",
	)

	require.Contains(t, out, "ipc_save: 73x46x1x1 grid written")

	f, err := readTransfer(path, binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, 73, f.nx)
	require.Equal(t, 46, f.ny)
	require.Equal(t, []float64{1000}, f.lev)
	require.Equal(t, float64(-90), f.lat[0])
	require.InDelta(t, 1101.5, f.data[0], 1e-6)

	out, _, _ = serve(t, map[string]string{EnvBigEndian: "1"}, []string{"-b", "-l"},
		"ipc_open "+path+" r",
		"define back = ipc_load()",
		"ipc_close",
		"display back",
	)

	require.Contains(t, out, "Define memory allocation size = 26864 bytes")
	require.Contains(t, out, "Contouring: ")
}

func TestServe_CrashAndStartupFailure(t *testing.T) {
	_, stderr, code := serve(t, nil, []string{"-b", "-l"}, "crash")
	require.Equal(t, 139, code)
	require.Contains(t, stderr, "Segmentation fault")

	_, stderr, code = serve(t, map[string]string{EnvExitOnStart: "1"}, nil)
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "unable to initialize graphics")
}

func TestOperatorIndex(t *testing.T) {
	require.Equal(t, -1, operatorIndex("ps"))
	require.Equal(t, 3, operatorIndex("ts - 273.15"))
	require.Equal(t, -1, operatorIndex("1e-5"))
	require.Equal(t, 2, operatorIndex("ps*1e-5"))
}
