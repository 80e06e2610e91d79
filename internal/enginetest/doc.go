// Package enginetest provides a scripted stand-in for the GrADS engine.
//
// The fake speaks the engine's line protocol on stdin/stdout: it understands
// open/sdfopen/xdfopen, q dims/file/config, set lon/lat/lev/x/y/z/t,
// display, define/undefine, the ipc_* transfer commands, shell escapes
// (!echo), reinit, close and quit. Two extra commands exist for failure
// tests: "hang" stops responding and "crash" exits with status 139.
//
// Test packages run the fake by re-executing their own test binary:
//
//	func TestMain(m *testing.M) {
//	    enginetest.RunIfRequested()
//	    os.Exit(m.Run())
//	}
//
// and pointing the session at it:
//
//	s, err := grads.Start(ctx,
//	    grads.WithBinPath(enginetest.BinPath(t)),
//	    grads.WithEnv(enginetest.Env()),
//	)
package enginetest
