package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wagiedev/grads-sdk-go/internal/errors"
)

// BinaryNames are the engine executables searched in PATH, in order.
// The variants differ only in the data formats they were built with.
var BinaryNames = []string{"grads", "gradsnc", "gradshdf", "gradsdods", "gradsc"}

// Config holds configuration for engine discovery.
type Config struct {
	// BinPath is an explicit engine path that skips PATH search.
	BinPath string

	// Logger is an optional logger for discovery operations.
	// If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Discoverer locates the engine binary.
type Discoverer interface {
	// Discover returns the path to the engine binary or an EngineStartupError
	// listing every searched location.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg      *Config
	log      *slog.Logger
	lookPath func(string) (string, error)
	homeDir  func() (string, error)
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a new engine discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &discoverer{
		cfg:      cfg,
		log:      log.With("component", "discovery"),
		lookPath: exec.LookPath,
		homeDir:  os.UserHomeDir,
	}
}

// Discover locates the engine binary.
func (d *discoverer) Discover(ctx context.Context) (string, error) {
	d.log.Debug("Discovering engine binary")

	if err := ctx.Err(); err != nil {
		return "", err
	}

	binPath, err := d.findEngine()
	if err != nil {
		d.log.Error("Failed to find engine", "error", err)

		return "", err
	}

	d.log.Debug("Found engine binary", "bin_path", binPath)

	return binPath, nil
}

func (d *discoverer) findEngine() (string, error) {
	// An explicit path is used and only it
	if d.cfg.BinPath != "" {
		if isExecutable(d.cfg.BinPath) {
			return d.cfg.BinPath, nil
		}

		d.log.Debug("Explicit engine path not usable", "bin_path", d.cfg.BinPath)

		return "", &errors.EngineStartupError{SearchedPaths: []string{d.cfg.BinPath}}
	}

	searchedPaths := make([]string, 0, len(BinaryNames)*4)

	for _, name := range BinaryNames {
		if path, err := d.lookPath(name); err == nil {
			d.log.Debug("Found engine in PATH", "name", name, "path", path)

			return path, nil
		}

		searchedPaths = append(searchedPaths, "$PATH/"+name)
	}

	for _, dir := range d.commonDirs() {
		for _, name := range BinaryNames {
			path := filepath.Join(dir, name)
			searchedPaths = append(searchedPaths, path)

			if isExecutable(path) {
				d.log.Debug("Found engine at common path", "path", path)

				return path, nil
			}
		}
	}

	d.log.Warn("Engine not found in any searched paths", "searched_paths", searchedPaths)

	return "", &errors.EngineStartupError{SearchedPaths: searchedPaths}
}

func (d *discoverer) commonDirs() []string {
	dirs := []string{"/usr/local/bin", "/usr/bin"}

	if home, err := d.homeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "opengrads"))
	}

	return dirs
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	return info.Mode().Perm()&0o111 != 0
}
