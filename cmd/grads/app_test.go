package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/wagiedev/grads-sdk-go/internal/enginetest"
)

func TestMain(m *testing.M) {
	enginetest.RunIfRequested()
	os.Exit(m.Run())
}

// run executes the CLI against the fake engine and returns stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	// The engine inherits the environment; the test binary acts as the engine.
	t.Setenv(enginetest.EnvEnable, "1")

	var stdout, stderr bytes.Buffer

	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"grads", "--bin", enginetest.BinPath(t), "--transfer-dir", t.TempDir()}, args...)
	err := app.RunContext(context.Background(), argv)

	return stdout.String(), err
}

func TestRun_Arguments(t *testing.T) {
	out, err := run(t, "", "run", "!echo first", "!echo second")
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", out)
}

func TestRun_Stdin(t *testing.T) {
	out, err := run(t, "!echo from stdin\n\n!echo again\n", "run")
	require.NoError(t, err)
	assert.Equal(t, "from stdin\nagain\n", out)
}

func TestQuery_Dims(t *testing.T) {
	model := enginetest.WriteModel(t)

	out, err := run(t, "", "query", "--open", model, "--exec", "set lon -180 180", "dims")
	require.NoError(t, err)

	var dims struct {
		DefaultFile int `json:"defaultFile"`
		X           struct {
			State string  `json:"state"`
			Min   float64 `json:"min"`
			Max   float64 `json:"max"`
		} `json:"x"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &dims))
	assert.Equal(t, 1, dims.DefaultFile)
	assert.Equal(t, "varying", dims.X.State)
	assert.InDelta(t, -180.0, dims.X.Min, 1e-9)
	assert.InDelta(t, 180.0, dims.X.Max, 1e-9)
}

func TestQuery_UnknownKind(t *testing.T) {
	_, err := run(t, "", "query", "ensembles")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown query kind")
}

func TestQuery_Usage(t *testing.T) {
	_, err := run(t, "", "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")
}

func TestExport_Summary(t *testing.T) {
	model := enginetest.WriteModel(t)

	out, err := run(t, "", "export", "--open", model, "ps")
	require.NoError(t, err)

	var summary struct {
		Shape [4]int   `json:"shape"`
		Min   *float64 `json:"min"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, [4]int{73, 46, 1, 1}, summary.Shape)
	require.NotNil(t, summary.Min)
	assert.InDelta(t, 1101.5, *summary.Min, 1e-3)
}

func TestExport_Undefined(t *testing.T) {
	model := enginetest.WriteModel(t)

	_, err := run(t, "", "export", "--open", model, "nosuch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nosuch")
}

func TestEngineNotFound(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.RunContext(context.Background(), []string{"grads", "--bin", "/nonexistent/grads", "run", "q config"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/grads")
}
