// Package build drives the configure and build steps against the build
// directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/aurashell/rendererbuild/internal/command"
	"github.com/aurashell/rendererbuild/internal/config"
	"github.com/aurashell/rendererbuild/internal/console"
	"github.com/aurashell/rendererbuild/internal/failure"
	"github.com/aurashell/rendererbuild/internal/generator"
	"github.com/aurashell/rendererbuild/internal/step"
)

// MaxConfigureAttempts bounds the configure step: one try and one retry
// after a clean.
const MaxConfigureAttempts = 2

// ConfigureResult is the outcome of the configure step.
type ConfigureResult struct {
	Attempts int
	Cleaned  int
	Err      *failure.Error
}

// OK reports whether a configure attempt succeeded.
func (r ConfigureResult) OK() bool {
	return r.Err == nil
}

// BuildResult is the outcome of the build step.
type BuildResult struct {
	Err *failure.Error
}

// OK reports whether the build step succeeded.
func (r BuildResult) OK() bool {
	return r.Err == nil
}

// Orchestrator owns the build directory for the duration of a run.
type Orchestrator struct {
	Runner   command.Runner
	Settings config.Settings
	Out      *console.Printer
	Log      log.FieldLogger

	// RemoveAll deletes a directory tree. Defaults to RemoveTree.
	RemoveAll func(dir string) error

	// Tool output. Configure stderr is captured and only printed on failure;
	// build stderr is also streamed here.
	Stdout io.Writer
	Stderr io.Writer
}

// NewOrchestrator returns an orchestrator streaming tool output to the
// process's stdout and stderr.
func NewOrchestrator(r command.Runner, s config.Settings, out *console.Printer) *Orchestrator {
	return &Orchestrator{
		Runner:    r,
		Settings:  s,
		Out:       out,
		Log:       log.StandardLogger(),
		RemoveAll: RemoveTree,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
	}
}

func (o *Orchestrator) steps() *step.Runner {
	return &step.Runner{Commands: o.Runner, Out: o.Out, Log: o.Log}
}

// Clean deletes the build directory. A missing directory is not an error.
func (o *Orchestrator) Clean() error {
	dir := o.Settings.BuildDir
	if _, err := os.Lstat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	o.Log.WithField("Dir", dir).Info("Removing build directory")
	remove := o.RemoveAll
	if remove == nil {
		remove = RemoveTree
	}
	return remove(dir)
}

// RemoveTree removes dir like os.RemoveAll. When that fails it clears
// read-only permission bits throughout the tree and tries once more.
func RemoveTree(dir string) error {
	if err := os.RemoveAll(dir); err == nil {
		return nil
	}

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		switch {
		case d.IsDir():
			_ = os.Chmod(path, 0o700)
		case d.Type().IsRegular():
			_ = os.Chmod(path, 0o600)
		}
		return nil
	})

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}

func (o *Orchestrator) configureCommand(choice generator.Choice, cfg config.BuildConfig) command.Cmd {
	c := command.New(generator.Tool,
		"-S", o.Settings.SourceDir,
		"-B", o.Settings.BuildDir,
		"-G", choice.String(),
	)
	if !choice.MultiConfig() {
		c.Args = append(c.Args, "-DCMAKE_BUILD_TYPE="+cfg.BuildType())
	}
	c.Stdout = o.Stdout
	return c
}

// Configure runs the configure step. A failed attempt prints the captured
// stderr, deletes the build directory and tries again, at most
// MaxConfigureAttempts times in total.
func (o *Orchestrator) Configure(ctx context.Context, choice generator.Choice, cfg config.BuildConfig) ConfigureResult {
	var res ConfigureResult

	for attempt := 1; attempt <= MaxConfigureAttempts; attempt++ {
		if attempt > 1 {
			o.Out.Warn("Configure failed, cleaning the build directory and retrying...")
			if err := o.Clean(); err != nil {
				res.Err = &failure.Error{Kind: failure.Command, Op: "clean", Command: o.Settings.BuildDir, Err: err}
				return res
			}
			res.Cleaned++
		}

		res.Attempts = attempt
		out, fe := o.steps().Run(ctx, step.Step{
			Name: "CMake configure",
			Op:   "configure",
			Kind: failure.Configure,
			Cmd:  o.configureCommand(choice, cfg),
		})
		if fe == nil {
			res.Err = nil
			return res
		}

		o.Out.Block(out.Stderr)
		res.Err = fe
		if fe.Kind == failure.CommandNotFound || ctx.Err() != nil {
			break
		}
		o.Log.WithFields(log.Fields{"Attempt": attempt, "ExitCode": failure.Hex(out.ExitCode)}).Warn("Configure attempt failed")
	}
	return res
}

// Build runs the build step for the configured build type.
func (o *Orchestrator) Build(ctx context.Context, cfg config.BuildConfig) BuildResult {
	c := command.New(generator.Tool,
		"--build", o.Settings.BuildDir,
		"--config", cfg.BuildType(),
		"--parallel", strconv.Itoa(o.Settings.ParallelJobs()),
	)
	c.Stdout = o.Stdout
	c.Stderr = o.Stderr

	_, fe := o.steps().Run(ctx, step.Step{
		Name: "CMake build",
		Op:   "build",
		Kind: failure.Build,
		Cmd:  c,
	})
	return BuildResult{Err: fe}
}

// ConfigureAndBuild configures, then builds. What happens after configure
// fails twice depends on the settings' configure_failure policy.
func (o *Orchestrator) ConfigureAndBuild(ctx context.Context, choice generator.Choice, cfg config.BuildConfig) error {
	cr := o.Configure(ctx, choice, cfg)
	if !cr.OK() {
		if cr.Err.Kind != failure.Configure || o.Settings.ConfigureFailure != config.PolicyContinue {
			return cr.Err
		}
		o.Out.Error("%v", cr.Err)
		o.Log.WithField("Policy", o.Settings.ConfigureFailure).Warn("Building despite configure failure")
	}

	br := o.Build(ctx, cfg)
	if !br.OK() {
		return br.Err
	}
	return nil
}
