package engine

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/wagiedev/grads-sdk-go/internal/config"
)

// BuildArgs constructs the engine command line arguments.
//
// An orientation flag is always passed, otherwise the engine prompts for one
// on stdin before accepting commands.
func BuildArgs(options *config.Options) []string {
	args := make([]string, 0, 6+len(options.ExtraArgs))

	if !options.Interactive {
		args = append(args, "-b")
	}

	if config.NormalizeOrientation(options.Orientation) == config.OrientationPortrait {
		args = append(args, "-p")
	} else {
		args = append(args, "-l")
	}

	if options.WindowGeometry != "" {
		args = append(args, "-g", options.WindowGeometry)
	}

	args = append(args, options.ExtraArgs...)

	if options.InitialCommand != "" {
		args = append(args, "-c", options.InitialCommand)
	}

	return args
}

// BuildEnvironment constructs the environment variables for the engine process.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()

	named := map[string]string{
		"GADDIR": options.DataDir,
		"GASCRP": options.ScriptPath,
		"GAUDFT": options.UDFTable,
	}

	for _, key := range []string{"GADDIR", "GASCRP", "GAUDFT"} {
		if named[key] != "" {
			env = append(env, fmt.Sprintf("%s=%s", key, named[key]))
		}
	}

	// Sorted so the resulting environment is deterministic
	keys := make([]string, 0, len(options.Env))
	for key := range options.Env {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		env = append(env, fmt.Sprintf("%s=%s", key, options.Env[key]))
	}

	return env
}

// Describe renders argv as a single shell-like string for logs.
func Describe(binPath string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binPath)

	for _, arg := range args {
		if strings.ContainsAny(arg, " \t'\"") {
			arg = fmt.Sprintf("%q", arg)
		}

		parts = append(parts, arg)
	}

	return strings.Join(parts, " ")
}
