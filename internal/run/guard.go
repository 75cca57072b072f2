// Package run locates the built program and runs it when a display is
// available.
package run

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/aurashell/rendererbuild/internal/command"
	"github.com/aurashell/rendererbuild/internal/config"
	"github.com/aurashell/rendererbuild/internal/console"
	"github.com/aurashell/rendererbuild/internal/failure"
	"github.com/aurashell/rendererbuild/internal/step"
)

// Environment variables announcing a graphical session.
const (
	DisplayVar    = "DISPLAY"
	CompositorVar = "WAYLAND_DISPLAY"
)

// Shell runs the program on non-Windows hosts.
const Shell = "sh"

// IsHeadless reports whether neither session variable is set to a
// non-empty value.
func IsHeadless(getenv func(string) string) bool {
	return getenv(DisplayVar) == "" && getenv(CompositorVar) == ""
}

// RunResult is the outcome of the run stage.
type RunResult struct {
	Path    string
	Skipped bool // headless host or running disabled
	Ran     bool
	Err     *failure.Error
}

// Guard decides whether and how the built program runs.
type Guard struct {
	Settings config.Settings
	Runner   command.Runner
	Out      *console.Printer
	Log      log.FieldLogger

	Getenv func(string) string
	// NoRun reports the build without running it, like a headless host.
	NoRun bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewGuard returns a guard reading the process environment and attaching
// the program to the terminal.
func NewGuard(r command.Runner, s config.Settings, out *console.Printer) *Guard {
	return &Guard{
		Settings: s,
		Runner:   r,
		Out:      out,
		Log:      log.StandardLogger(),
		Getenv:   os.Getenv,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

// Locate returns the multi-config path <build>/<type>/<exe> when it exists
// and the single-config path <build>/<exe> otherwise.
func (g *Guard) Locate(isWindows bool, buildType string) string {
	name := g.Settings.ExecutableName(isWindows)
	path := filepath.Join(g.Settings.BuildDir, buildType, name)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(g.Settings.BuildDir, name)
}

// RunIfPossible locates the program and runs it unless the host is
// headless. A nonzero exit is a RuntimeCrash.
func (g *Guard) RunIfPossible(ctx context.Context, isWindows bool, buildType string) (RunResult, error) {
	path := g.Locate(isWindows, buildType)
	res := RunResult{Path: path}

	_, statErr := os.Stat(path)
	if !isWindows && statErr == nil {
		if err := os.Chmod(path, 0o755); err != nil {
			g.Log.WithError(err).WithField("Path", path).Warn("Could not mark the program executable")
		}
	}

	if g.NoRun || IsHeadless(g.getenv) {
		if g.NoRun {
			g.Out.Printf("\nRunning disabled with --no-run. Skipping execution.\n")
		} else {
			g.Out.Printf("\nHeadless environment detected. Skipping execution.\n")
		}
		g.Out.Info("Build successful: %s", path)
		res.Skipped = true
		return res, nil
	}

	if errors.Is(statErr, fs.ErrNotExist) {
		res.Err = &failure.Error{Kind: failure.CommandNotFound, Op: "run", Command: path, ExitCode: -1, Err: statErr}
		return res, res.Err
	}

	g.Out.Printf("Running: %s\n", path)
	c := runCommand(path, isWindows)
	c.Stdin = g.Stdin
	c.Stdout = g.Stdout
	c.Stderr = g.Stderr

	steps := &step.Runner{Commands: g.Runner, Out: g.Out, Log: g.Log}
	_, fe := steps.Run(ctx, step.Step{
		Name: "Run executable",
		Op:   "run",
		Kind: failure.RuntimeCrash,
		Cmd:  c,
	})
	res.Ran = true
	if fe != nil {
		res.Err = fe
		return res, fe
	}
	return res, nil
}

func (g *Guard) getenv(key string) string {
	if g.Getenv == nil {
		return os.Getenv(key)
	}
	return g.Getenv(key)
}

// runCommand starts the program directly on Windows and through the shell
// with an explicit relative path elsewhere.
func runCommand(path string, isWindows bool) command.Cmd {
	if isWindows {
		return command.New(path)
	}
	if !filepath.IsAbs(path) {
		path = "./" + filepath.ToSlash(path)
	}
	return command.New(Shell, "-c", shellQuote(path))
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
