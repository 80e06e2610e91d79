package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/grads-sdk-go/internal/bridge"
	"github.com/wagiedev/grads-sdk-go/internal/config"
	"github.com/wagiedev/grads-sdk-go/internal/enginetest"
	"github.com/wagiedev/grads-sdk-go/internal/errors"
	"github.com/wagiedev/grads-sdk-go/internal/parse"
)

func TestMain(m *testing.M) {
	enginetest.RunIfRequested()
	os.Exit(m.Run())
}

func fakeOptions(t *testing.T, env ...string) *config.Options {
	t.Helper()

	return &config.Options{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		BinPath:     enginetest.BinPath(t),
		Env:         enginetest.Env(env...),
		TransferDir: t.TempDir(),
	}
}

func startSession(t *testing.T, opts *config.Options) *Session {
	t.Helper()

	s := New()
	require.NoError(t, s.Start(context.Background(), opts))

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func openModel(t *testing.T, s *Session) *FileHandle {
	t.Helper()

	h, err := s.Open(context.Background(), enginetest.WriteModel(t), FormatAuto)
	require.NoError(t, err)

	return h
}

func TestStart_ReadyWithConfig(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	assert.True(t, s.Alive())
	assert.NotZero(t, s.Pid())
	assert.Equal(t, "2.0.2", s.Config().Version)
	assert.Equal(t, config.ByteOrderLittle, s.Config().ByteOrder())
	assert.Equal(t, config.GrammarV2, s.Grammar().Version)
}

func TestStart_LegacyEngineSelectsGrammar(t *testing.T) {
	s := startSession(t, fakeOptions(t, enginetest.EnvLegacy, "1"))

	assert.Equal(t, config.GrammarV1, s.Grammar().Version)

	h := openModel(t, s)
	assert.Equal(t, [4]int{72, 46, 7, 5}, h.Shape())

	dims, err := s.QueryDims(context.Background())
	require.NoError(t, err)
	assert.Equal(t, parse.AxisVarying, dims.X.State)
}

func TestStart_ForcedGrammar(t *testing.T) {
	opts := fakeOptions(t)
	opts.Grammar = config.GrammarV1

	s := startSession(t, opts)
	assert.Equal(t, config.GrammarV1, s.Grammar().Version)
}

func TestStart_UnknownGrammar(t *testing.T) {
	opts := fakeOptions(t)
	opts.Grammar = "7"

	err := New().Start(context.Background(), opts)

	_, ok := stderrors.AsType[*errors.EngineStartupError](err)
	assert.True(t, ok, "expected EngineStartupError, got %T", err)
}

func TestStart_EngineNotFound(t *testing.T) {
	err := New().Start(context.Background(), &config.Options{BinPath: "/nonexistent/grads"})

	_, ok := stderrors.AsType[*errors.EngineStartupError](err)
	assert.True(t, ok, "expected EngineStartupError, got %T", err)
}

func TestStart_EngineExitsImmediately(t *testing.T) {
	err := New().Start(context.Background(), fakeOptions(t, enginetest.EnvExitOnStart, "1"))

	startErr, ok := stderrors.AsType[*errors.EngineStartupError](err)
	require.True(t, ok, "expected EngineStartupError, got %T", err)
	assert.True(t, errors.IsFatal(startErr))
}

func TestStart_NotReadyInTime(t *testing.T) {
	opts := fakeOptions(t)
	opts.InitialCommand = "hang"
	opts.StartupTimeout = 200 * time.Millisecond

	start := time.Now()
	err := New().Start(context.Background(), opts)

	_, ok := stderrors.AsType[*errors.EngineStartupError](err)
	require.True(t, ok, "expected EngineStartupError, got %T", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestStart_Twice(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	require.Error(t, s.Start(context.Background(), fakeOptions(t)))
}

func TestBeforeStart(t *testing.T) {
	s := New()

	require.ErrorIs(t, s.Cmd(context.Background(), "q config"), errors.ErrTransportNotStarted)
	assert.False(t, s.Alive())
	assert.Empty(t, s.Rline(1))
	require.NoError(t, s.Close())
}

func TestReadBack_OutOfRangeIsEmpty(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	require.NoError(t, s.Cmd(context.Background(), "q config"))

	n := s.LineCount()
	require.Positive(t, n)
	assert.Equal(t, "Config:", s.Rword(1, 1))
	assert.Empty(t, s.Rline(n+1))
	assert.Empty(t, s.Rline(0))
	assert.Empty(t, s.Rline(-3))
	assert.Empty(t, s.Rword(1, 99))
	assert.Empty(t, s.Rword(n+5, 1))
}

func TestExecute_OutputReplacedPerCommand(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	first, err := s.Execute(ctx, "!echo one")
	require.NoError(t, err)

	second, err := s.Execute(ctx, "!echo two")
	require.NoError(t, err)

	assert.Equal(t, []string{"one"}, first.Lines())
	assert.Equal(t, []string{"two"}, second.Lines())
	assert.Same(t, second, s.Output())
}

func TestExecute_ConcurrentCallsNeverInterleave(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	var wg sync.WaitGroup

	for i := range 16 {
		wg.Go(func() {
			text := fmt.Sprintf("!echo a%d\n!echo b%d", i, i)

			out, err := s.Execute(context.Background(), text)
			assert.NoError(t, err)
			assert.Equal(t, []string{fmt.Sprintf("a%d", i), fmt.Sprintf("b%d", i)}, out.Lines())
		})
	}

	wg.Wait()
}

func TestOpen_Model(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	h := openModel(t, s)

	assert.Equal(t, 1, h.ID)
	assert.Equal(t, 1, h.Seq)
	assert.Equal(t, "Gridded", h.Type)
	assert.Equal(t, "Test Data Set", h.Title)
	assert.Equal(t, 72, h.NX)
	assert.Equal(t, 46, h.NY)
	assert.Equal(t, 7, h.NZ)
	assert.Equal(t, 5, h.NT)
	assert.Equal(t, []string{"ps", "ts", "pr", "ua", "va", "zg", "ta", "hus"}, h.Vars)
	assert.Equal(t, []int{0, 0, 0, 7, 7, 7, 7, 7}, h.VarLevels)
	assert.Equal(t, "Surface Pressure", h.VarTitles[0])
	assert.False(t, h.Closed())
}

func TestOpen_SelfDescribing(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	h, err := s.Open(context.Background(), enginetest.WriteNetCDF(t, "sample.nc"), FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, [4]int{72, 46, 7, 5}, h.Shape())
}

func TestOpen_NotFoundKeepsSessionUsable(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	_, err := s.Open(ctx, "/nonexistent/model.ctl", FormatAuto)

	notFound, ok := stderrors.AsType[*errors.FileNotFoundError](err)
	require.True(t, ok, "expected FileNotFoundError, got %T", err)
	assert.Equal(t, "/nonexistent/model.ctl", notFound.Path)
	assert.False(t, errors.IsFatal(err))

	require.NoError(t, s.Cmd(ctx, "q config"))
	assert.Equal(t, "Config:", s.Rword(1, 1))
	assert.Empty(t, s.Files())
}

func TestOpen_NotFoundSelfDescribing(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	_, err := s.Open(context.Background(), "/nonexistent/sample.nc", FormatAuto)

	_, ok := stderrors.AsType[*errors.FileNotFoundError](err)
	assert.True(t, ok, "expected FileNotFoundError, got %T", err)
}

func TestOpen_Unsupported(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	_, err := s.Open(ctx, enginetest.WriteGarbage(t, "bogus.nc"), FormatAuto)
	_, ok := stderrors.AsType[*errors.UnsupportedFormatError](err)
	assert.True(t, ok, "expected UnsupportedFormatError, got %T", err)

	_, err = s.Open(ctx, enginetest.WriteGarbage(t, "bogus.ctl"), FormatAuto)
	_, ok = stderrors.AsType[*errors.UnsupportedFormatError](err)
	assert.True(t, ok, "expected UnsupportedFormatError, got %T", err)

	assert.True(t, s.Alive())
}

func TestOpenCommand(t *testing.T) {
	assert.Equal(t, "open /d/model.ctl", OpenCommand("/d/model.ctl", FormatAuto))
	assert.Equal(t, "sdfopen /d/model.NC", OpenCommand("/d/model.NC", FormatAuto))
	assert.Equal(t, "sdfopen /d/model.h5", OpenCommand("/d/model.h5", FormatAuto))
	assert.Equal(t, "sdfopen https://example.org/dods/gfs", OpenCommand("https://example.org/dods/gfs", FormatAuto))
	assert.Equal(t, "xdfopen /d/model.ddf", OpenCommand("/d/model.ddf", FormatDescriptorOverlay))
}

func TestCloseFile_SeqNeverReused(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	first := openModel(t, s)
	second := openModel(t, s)
	assert.Equal(t, 2, second.ID)

	require.NoError(t, s.CloseFile(ctx, 2))
	assert.True(t, second.Closed())
	assert.False(t, first.Closed())

	third := openModel(t, s)
	assert.Equal(t, 2, third.ID, "the engine reuses its file number")
	assert.Equal(t, 3, third.Seq, "the session never does")

	files := s.Files()
	require.Len(t, files, 3)
	assert.Same(t, second, files[1])
}

func TestCloseFile_Errors(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	require.ErrorIs(t, s.CloseFile(ctx, 1), errors.ErrFileNotRegistered)

	openModel(t, s)
	openModel(t, s)

	err := s.CloseFile(ctx, 1)

	_, ok := stderrors.AsType[*errors.CommandError](err)
	require.True(t, ok, "expected CommandError, got %T", err)
	assert.False(t, s.Files()[0].Closed())
}

func TestOpen_UndescribedFileIsClosed(t *testing.T) {
	s := startSession(t, fakeOptions(t, enginetest.EnvTruncatedFileQuery, "1"))
	ctx := context.Background()

	_, err := s.Open(ctx, enginetest.WriteModel(t), FormatAuto)
	require.Error(t, err)

	_, ok := stderrors.AsType[*errors.ParseError](err)
	require.True(t, ok, "expected ParseError, got %T", err)
	assert.Empty(t, s.Files())
	assert.True(t, s.Alive())

	// The engine no longer holds the file either.
	require.NoError(t, s.Cmd(ctx, "q file"))
	assert.Equal(t, "No Files Open", s.Rline(1))
}

func TestQuery_DimsAfterSetLon(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	openModel(t, s)
	require.NoError(t, s.Cmd(ctx, "set lon -180 180"))

	record, err := s.Query(ctx, QueryDims)
	require.NoError(t, err)

	dims, ok := record.(*parse.DimensionState)
	require.True(t, ok)
	assert.Equal(t, 1, dims.DefaultFile)
	assert.Equal(t, parse.AxisVarying, dims.X.State)
	assert.InDelta(t, -180.0, dims.X.Min, 1e-9)
	assert.InDelta(t, 180.0, dims.X.Max, 1e-9)
	assert.True(t, dims.Z.Fixed())
	assert.Equal(t, "00Z01JAN1987", dims.T.TimeMin)
}

func TestQuery_FileAndConfig(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	openModel(t, s)

	record, err := s.Query(ctx, QueryFile)
	require.NoError(t, err)

	info, ok := record.(*parse.FileInfo)
	require.True(t, ok)
	assert.Equal(t, 1, info.ID)
	assert.Len(t, info.Vars, 8)

	record, err = s.Query(ctx, QueryConfig)
	require.NoError(t, err)

	cfg, ok := record.(*parse.ConfigInfo)
	require.True(t, ok)
	assert.Equal(t, "2.0.2", cfg.Version)
}

func TestQuery_NoFilesOpen(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	_, err := s.QueryDims(context.Background())

	_, ok := stderrors.AsType[*errors.CommandError](err)
	assert.True(t, ok, "expected CommandError, got %T", err)
	assert.True(t, s.Alive())
}

func TestQuery_UnknownKindSkipsEngine(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	before := s.Output()

	_, err := s.Query(context.Background(), QueryKind("ensembles"))
	require.ErrorIs(t, err, errors.ErrUnknownQueryKind)
	assert.Same(t, before, s.Output(), "no command was sent")
}

func TestExportImport_RoundTrip(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	openModel(t, s)

	original, err := s.Export(ctx, "ps")
	require.NoError(t, err)
	assert.Equal(t, [4]int{73, 46, 1, 1}, original.Shape())
	assert.InDelta(t, 1101.5, original.At(0, 0, 0, 0), 1e-3)
	assert.InDelta(t, 0.0, original.Grid.Lon[0], 1e-9)
	assert.InDelta(t, -90.0, original.Grid.Lat[0], 1e-9)

	require.NoError(t, s.Import(ctx, "x", original, nil))

	shape, ok := s.Defined("x")
	require.True(t, ok)
	assert.Equal(t, original.Shape(), shape)

	back, err := s.Export(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, original.Shape(), back.Shape())
	assert.InDeltaSlice(t, original.Data, back.Data, 1e-3)

	entries, err := os.ReadDir(s.options.TransferDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "transfer files are removed")
}

func TestExportImport_BigEndianEngine(t *testing.T) {
	s := startSession(t, fakeOptions(t, enginetest.EnvBigEndian, "1"))
	ctx := context.Background()

	assert.Equal(t, config.ByteOrderBig, s.Config().ByteOrder())

	openModel(t, s)

	a, err := s.Export(ctx, "ts + 1")
	require.NoError(t, err)
	assert.InDelta(t, 11102.5, a.At(0, 0, 0, 0), 1e-3)

	require.NoError(t, s.Import(ctx, "y", a, nil))

	b, err := s.Export(ctx, "y")
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.Data, b.Data, 1e-3)
}

func TestExport_UndefinedKeepsSessionUsable(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	openModel(t, s)

	_, err := s.Export(ctx, "nosuch")

	undef, ok := stderrors.AsType[*errors.UndefinedVariableError](err)
	require.True(t, ok, "expected UndefinedVariableError, got %T", err)
	assert.Equal(t, "nosuch", undef.Expr)
	assert.False(t, errors.IsFatal(err))

	require.NoError(t, s.Cmd(ctx, "q config"))
}

func TestImport_DisplayThenRender(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	openModel(t, s)

	a, err := s.Export(ctx, "ps")
	require.NoError(t, err)

	require.NoError(t, s.Import(ctx, bridge.Display, a, nil))
	assert.Contains(t, s.Output().String(), "Contouring")

	_, ok := s.Defined(bridge.Display)
	assert.False(t, ok, "the display is not a variable")

	require.NoError(t, s.Cmd(ctx, "printim out.png"))
	assert.True(t, s.Alive())
}

func TestImport_DisplayAcceptsAnyShape(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	grid := bridge.Grid{
		NX: 2, NY: 2, NZ: 1, NT: 1,
		Lon: []float64{0, 1}, Lat: []float64{0, 1}, Lev: []float64{1000}, Time: []float64{0},
		Undef: -9.99e8,
	}

	a, err := bridge.NewArray(grid, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	require.NoError(t, s.Import(context.Background(), bridge.Display, a, nil))
	assert.True(t, strings.HasPrefix(s.Rline(1), "Contouring: 1 to 4 interval"), s.Rline(1))
}

func TestImport_ShapeMismatchSendsNothing(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	openModel(t, s)

	a, err := s.Export(ctx, "ps")
	require.NoError(t, err)
	require.NoError(t, s.Import(ctx, "x", a, nil))

	require.NoError(t, s.Cmd(ctx, "set lat 0"))

	narrow, err := s.Export(ctx, "ps")
	require.NoError(t, err)
	require.Equal(t, [4]int{73, 1, 1, 1}, narrow.Shape())

	before := s.Output()

	err = s.Import(ctx, "x", narrow, nil)

	mismatch, ok := stderrors.AsType[*errors.ShapeMismatchError](err)
	require.True(t, ok, "expected ShapeMismatchError, got %T", err)
	assert.Equal(t, [4]int{73, 46, 1, 1}, mismatch.Want)
	assert.Equal(t, [4]int{73, 1, 1, 1}, mismatch.Got)
	assert.Same(t, before, s.Output(), "no command was sent")

	// A grid override that restores the declared extents is accepted.
	wide := a.Grid

	require.NoError(t, s.Import(ctx, "x", a, &wide))
}

func TestImport_InconsistentArray(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	a := &bridge.Array{
		Data: []float64{1, 2, 3},
		Grid: bridge.Grid{NX: 2, NY: 1, NZ: 1, NT: 1, Lon: []float64{0, 1}, Lat: []float64{0}, Lev: []float64{0}, Time: []float64{0}},
	}

	err := s.Import(context.Background(), "z", a, nil)

	_, ok := stderrors.AsType[*errors.ShapeMismatchError](err)
	assert.True(t, ok, "expected ShapeMismatchError, got %T", err)
}

func TestUndefine(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	openModel(t, s)

	a, err := s.Export(ctx, "ps")
	require.NoError(t, err)
	require.NoError(t, s.Import(ctx, "x", a, nil))

	require.NoError(t, s.Undefine(ctx, "x"))

	_, ok := s.Defined("x")
	assert.False(t, ok)

	err = s.Undefine(ctx, "x")

	_, ok = stderrors.AsType[*errors.CommandError](err)
	assert.True(t, ok, "expected CommandError, got %T", err)
}

func TestReinit_InvalidatesHandles(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	h := openModel(t, s)

	a, err := s.Export(ctx, "ps")
	require.NoError(t, err)
	require.NoError(t, s.Import(ctx, "x", a, nil))

	require.NoError(t, s.Reinit(ctx))
	assert.True(t, h.Closed())

	_, ok := s.Defined("x")
	assert.False(t, ok)

	again := openModel(t, s)
	assert.Equal(t, 1, again.ID)
	assert.Equal(t, 2, again.Seq)
}

func TestExternalKill_IsCrashForever(t *testing.T) {
	s := startSession(t, fakeOptions(t))
	ctx := context.Background()

	require.NoError(t, syscall.Kill(s.Pid(), syscall.SIGKILL))

	_, err := s.Execute(ctx, "q config")

	_, ok := stderrors.AsType[*errors.EngineCrashError](err)
	require.True(t, ok, "expected EngineCrashError, got %T: %v", err, err)

	require.Eventually(t, func() bool { return !s.Alive() }, 5*time.Second, 10*time.Millisecond)

	for range 3 {
		_, err = s.Execute(ctx, "q config")

		_, ok = stderrors.AsType[*errors.EngineCrashError](err)
		assert.True(t, ok, "expected EngineCrashError, got %T", err)
	}

	_, err = s.Open(ctx, "/any.ctl", FormatAuto)
	_, ok = stderrors.AsType[*errors.EngineCrashError](err)
	assert.True(t, ok, "expected EngineCrashError, got %T", err)
}

func TestEngineCrash_ReportsExitCode(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	err := s.Cmd(context.Background(), "crash")

	crash, ok := stderrors.AsType[*errors.EngineCrashError](err)
	require.True(t, ok, "expected EngineCrashError, got %T", err)
	assert.Equal(t, 139, crash.ExitCode)
	assert.Contains(t, crash.Stderr, "Segmentation fault")
}

func TestCommandTimeout_IsFatal(t *testing.T) {
	opts := fakeOptions(t)
	opts.CommandTimeout = 300 * time.Millisecond

	s := startSession(t, opts)
	ctx := context.Background()

	err := s.Cmd(ctx, "hang")

	_, ok := stderrors.AsType[*errors.CommandTimeoutError](err)
	require.True(t, ok, "expected CommandTimeoutError, got %T", err)
	assert.True(t, errors.IsFatal(err))
	assert.False(t, s.Alive())

	err = s.Cmd(ctx, "q config")
	_, ok = stderrors.AsType[*errors.CommandTimeoutError](err)
	assert.True(t, ok, "later calls keep failing, got %T", err)
}

func TestCancel_IsNotFatal(t *testing.T) {
	s := startSession(t, fakeOptions(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Taking the slot and noticing the ended context race; neither outcome
	// may harm the session.
	for i := range 200 {
		require.ErrorIs(t, s.Cmd(ctx, "q config"), context.Canceled)
		require.True(t, s.Alive(), "call %d ended the session: %v", i, s.Err())
	}

	require.NoError(t, s.Cmd(context.Background(), "q config"))
	assert.Contains(t, s.Rline(1), "Config")
}

func TestClose_Idempotent(t *testing.T) {
	s := New()
	require.NoError(t, s.Start(context.Background(), fakeOptions(t)))

	pid := s.Pid()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Cmd(context.Background(), "q config"), errors.ErrSessionClosed)
	assert.False(t, s.Alive())

	// The engine is gone.
	assert.Error(t, syscall.Kill(pid, 0))
}

func TestOptionsFile(t *testing.T) {
	path := t.TempDir() + "/grads.yaml"
	require.NoError(t, os.WriteFile(path, []byte("grammar: \"1\"\ncommandTimeout: 5s\n"), 0o600))

	opts := fakeOptions(t)
	opts.OptionsFile = path

	s := startSession(t, opts)
	assert.Equal(t, config.GrammarV1, s.Grammar().Version)
	assert.Equal(t, 5*time.Second, s.options.CommandTimeout)
}
