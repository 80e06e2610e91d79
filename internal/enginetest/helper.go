package enginetest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	// EnvEnable switches a re-executed test binary into fake engine mode.
	EnvEnable = "GRADS_FAKE_ENGINE"

	// EnvBigEndian makes the fake report and write big-endian transfers.
	EnvBigEndian = "GRADS_FAKE_BIG_ENDIAN"

	// EnvLegacy makes the fake answer like a 1.9 engine (no ensemble axis).
	EnvLegacy = "GRADS_FAKE_LEGACY"

	// EnvExitOnStart makes the fake exit before printing anything.
	EnvExitOnStart = "GRADS_FAKE_EXIT_ON_START"

	// EnvTruncatedFileQuery makes the fake stop its "q file" reply after the
	// title line.
	EnvTruncatedFileQuery = "GRADS_FAKE_TRUNCATED_QFILE"
)

// RunIfRequested serves the fake engine on the process's stdio and exits
// when EnvEnable is set. Otherwise it returns immediately.
func RunIfRequested() {
	if os.Getenv(EnvEnable) != "1" {
		return
	}

	os.Exit(Serve(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv))
}

// BinPath returns the path of the running test binary.
func BinPath(t testing.TB) string {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	return exe
}

// Env returns the environment that enables fake engine mode, plus any extra
// key/value pairs.
func Env(extra ...string) map[string]string {
	env := map[string]string{EnvEnable: "1"}

	for i := 0; i+1 < len(extra); i += 2 {
		env[extra[i]] = extra[i+1]
	}

	return env
}

// ModelDescriptor is a descriptor for the 72x46x7x5 sample model.
const ModelDescriptor = `dset ^model.dat
title Test Data Set
undef -9.99e8
xdef 72 linear 0 5
ydef 46 linear -90 4
zdef 7 levels 1000 850 700 500 300 200 100
tdef 5 linear 00Z01JAN1987 1dy
vars 8
ps 0 99 Surface Pressure
ts 0 99 Surface Temperature
pr 0 99 Precipitation
ua 7 99 Eastward Wind
va 7 99 Northward Wind
zg 7 99 Geopotential Height
ta 7 99 Air Temperature
hus 7 99 Specific Humidity
endvars
`

// WriteModel writes the sample model descriptor into a temporary directory
// and returns its path.
func WriteModel(t testing.TB) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "model.ctl")

	require.NoError(t, os.WriteFile(path, []byte(ModelDescriptor), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.dat"), nil, 0o600))

	return path
}

// WriteNetCDF writes a file carrying the netCDF magic and returns its path.
// The fake serves the sample model for it.
func WriteNetCDF(t testing.TB, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("CDF\x01"), 0o600))

	return path
}

// WriteGarbage writes a file no opener understands and returns its path.
func WriteGarbage(t testing.TB, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("this is not gridded data\n"), 0o600))

	return path
}
