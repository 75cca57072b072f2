// Package pipeline runs the dependency, generator, build and run stages in
// order.
package pipeline

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/aurashell/rendererbuild/internal/build"
	"github.com/aurashell/rendererbuild/internal/command"
	"github.com/aurashell/rendererbuild/internal/config"
	"github.com/aurashell/rendererbuild/internal/console"
	"github.com/aurashell/rendererbuild/internal/deps"
	"github.com/aurashell/rendererbuild/internal/failure"
	"github.com/aurashell/rendererbuild/internal/generator"
	"github.com/aurashell/rendererbuild/internal/run"
)

// Pipeline owns the stages of one run. Each stage returns before the next
// one starts.
type Pipeline struct {
	Config    config.BuildConfig
	Settings  config.Settings
	IsWindows bool

	Out *console.Printer
	Log log.FieldLogger

	Resolver *deps.Resolver
	Selector *generator.Selector
	Builder  *build.Orchestrator
	Guard    *run.Guard
}

// New wires every stage to runner and out.
func New(cfg config.BuildConfig, s config.Settings, runner command.Runner, out *console.Printer, isWindows bool) *Pipeline {
	guard := run.NewGuard(runner, s, out)
	guard.NoRun = cfg.NoRun

	return &Pipeline{
		Config:    cfg,
		Settings:  s,
		IsWindows: isWindows,
		Out:       out,
		Log:       log.StandardLogger(),
		Resolver:  deps.NewResolver(runner, out),
		Selector:  generator.NewSelector(runner),
		Builder:   build.NewOrchestrator(runner, s, out),
		Guard:     guard,
	}
}

// SetLogger routes every stage's log entries to l.
func (p *Pipeline) SetLogger(l log.FieldLogger) {
	p.Log = l
	p.Resolver.Log = l
	p.Selector.Log = l
	p.Builder.Log = l
	p.Guard.Log = l
}

// Run executes the stages and returns the first fatal failure.
func (p *Pipeline) Run(ctx context.Context) error {
	p.Log.WithFields(log.Fields{
		"BuildType": p.Config.BuildType(),
		"BuildDir":  p.Settings.BuildDir,
		"Clean":     p.Config.Clean,
		"SkipDeps":  p.Config.SkipDeps,
	}).Info("Starting build")

	if err := p.Resolver.Check(ctx, p.Config); err != nil {
		return err
	}

	choice := p.Selector.Select(ctx, p.IsWindows)
	p.Selector.CheckVersion(ctx, p.Settings.MinCMakeVersion)

	if p.Config.Clean {
		if _, err := os.Stat(p.Settings.BuildDir); err == nil {
			p.Out.Printf("Cleaning build directory...\n")
		}
		if err := p.Builder.Clean(); err != nil {
			return &failure.Error{Kind: failure.Command, Op: "clean", Command: p.Settings.BuildDir, Err: err}
		}
	}

	if err := p.Builder.ConfigureAndBuild(ctx, choice, p.Config); err != nil {
		return err
	}

	res, err := p.Guard.RunIfPossible(ctx, p.IsWindows, p.Config.BuildType())
	if err != nil {
		return err
	}
	p.Log.WithFields(log.Fields{"Path": res.Path, "Ran": res.Ran}).Info("Finished")
	return nil
}
