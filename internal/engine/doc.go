// Package engine locates the GrADS engine binary and builds its command line
// and environment.
//
// # Discovery
//
// The Discoverer interface locates the engine binary:
//
//	discoverer := engine.NewDiscoverer(&engine.Config{
//	    BinPath: "",           // Optional explicit path
//	    Logger:  slog.Default(),
//	})
//	binPath, err := discoverer.Discover(ctx)
//
// Discovery searches in the following order:
//  1. Explicit path in Config.BinPath (if provided)
//  2. System PATH, for each of grads, gradsnc, gradshdf, gradsdods, gradsc
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/opengrads)
//
// # Command Building
//
//	args := engine.BuildArgs(options)
//	env := engine.BuildEnvironment(options)
package engine
