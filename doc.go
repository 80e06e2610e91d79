// Package grads drives a GrADS analysis and display engine from Go.
//
// The engine runs as a subprocess. A Session sends it text commands over a
// pipe, captures each reply as line and word addressable Output, parses the
// structured replies of the dims, file and config queries, and moves gridded
// data between Go and the engine's variable space.
//
// # Basic Usage
//
//	ctx := context.Background()
//	s, err := grads.Start(ctx, grads.WithLogger(slog.Default()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Cmd(ctx, "q config"); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(s.Rline(1))
//
// # Data Exchange
//
// Export evaluates an expression in the current dimension environment and
// returns an Array; Import binds an Array to an engine variable or, with the
// Display destination, renders it:
//
//	ps, err := s.Export(ctx, "ps")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i := range ps.Data {
//	    ps.Data[i] /= 100
//	}
//	if err := s.Import(ctx, "psmb", ps, nil); err != nil {
//	    log.Fatal(err)
//	}
//	if err := s.Import(ctx, grads.Display, ps, nil); err != nil {
//	    log.Fatal(err)
//	}
//
// # Scoped Sessions
//
//	err := grads.WithSession(ctx, func(s grads.Session) error {
//	    fh, err := s.Open(ctx, "model.ctl")
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(fh.Vars)
//	    return nil
//	}, grads.WithCommandTimeout(time.Minute))
//
// # Error Handling
//
// Errors are typed. Some end the session, others only fail the call:
//
//	_, err := s.Open(ctx, path)
//	if nf, ok := errors.AsType[*grads.FileNotFoundError](err); ok {
//	    log.Printf("no such file %s", nf.Path)
//	}
//	if grads.IsFatal(err) {
//	    // EngineCrashError, CommandTimeoutError or ErrSessionClosed:
//	    // start a new session.
//	}
//
// # Requirements
//
// A GrADS binary (grads, gradsnc, gradshdf, gradsdods or gradsc) must be on
// PATH or given with WithBinPath.
package grads
