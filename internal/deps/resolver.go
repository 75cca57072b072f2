package deps

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/aurashell/rendererbuild/internal/command"
	"github.com/aurashell/rendererbuild/internal/config"
	"github.com/aurashell/rendererbuild/internal/console"
	"github.com/aurashell/rendererbuild/internal/failure"
)

// Resolver checks for missing native libraries and installs them with the
// operator's consent.
type Resolver struct {
	Runner  command.Runner
	Catalog Catalog
	Out     *console.Printer
	Log     log.FieldLogger

	// Confirm asks the operator a yes/no question. It returns false once ctx
	// is cancelled.
	Confirm func(ctx context.Context, prompt string) bool
	// Privileged reports whether the effective user can install without elevation.
	Privileged func() bool
	// GOOS is the host operating system; only "linux" is checked.
	GOOS string

	// Terminal streams attached to the install command.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Progress receives the package check progress bar; nil disables it.
	Progress io.Writer
}

// NewResolver returns a resolver for the current host, prompting on stdin.
func NewResolver(r command.Runner, out *console.Printer) *Resolver {
	res := &Resolver{
		Runner:     r,
		Catalog:    DefaultCatalog(),
		Out:        out,
		Log:        log.StandardLogger(),
		Confirm:    StdinConfirm(os.Stdin, out.W),
		Privileged: func() bool { return os.Geteuid() == 0 },
		GOOS:       runtime.GOOS,
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		res.Progress = os.Stderr
	}
	return res
}

// Resolve reports whether the pipeline may proceed, printing the
// diagnostic when it may not.
func (r *Resolver) Resolve(ctx context.Context, cfg config.BuildConfig) bool {
	if err := r.Check(ctx, cfg); err != nil {
		r.Out.Error("%v", err)
		return false
	}
	return true
}

// Check does the work of Resolve and returns the install failure instead of
// printing it. Detection problems and declined installs are not errors.
func (r *Resolver) Check(ctx context.Context, cfg config.BuildConfig) error {
	if r.GOOS != "linux" || cfg.SkipDeps {
		r.Log.WithFields(log.Fields{"OS": r.GOOS, "SkipDeps": cfg.SkipDeps}).Debug("Dependency check skipped")
		return nil
	}

	kind := Detect(ctx, r.Runner)
	if kind == None {
		r.Out.Warn("Warning: Could not detect package manager. Skipping dependency check.")
		r.Log.WithField("Kind", failure.Detection).Warn("No supported package manager found")
		return nil
	}
	r.Log.WithField("Manager", kind).Info("Detected package manager")
	r.Out.Step("Checking dependencies with %s", kind)

	missing := r.missing(ctx, kind)
	if len(missing) == 0 {
		r.Log.WithField("Manager", kind).Info("All dependencies are installed")
		return nil
	}

	r.Out.Printf("\nMissing dependencies detected (%d package(s)):\n", len(missing))
	for _, pkg := range missing {
		r.Out.Printf("  - %s\n", pkg)
	}

	argv := InstallCommand(kind, missing, r.privileged())
	r.Out.Printf("\nInstall command: %s\n\n", command.Join(argv))

	consent := r.Confirm(ctx, "Would you like to install them now?")
	if ctx.Err() != nil {
		r.Log.WithError(ctx.Err()).Warn("Dependency installation interrupted at the prompt")
		return &failure.Error{Kind: failure.Install, Op: "install", Command: command.Join(argv), Err: ctx.Err()}
	}
	if !consent {
		r.Out.Warn("Skipping dependency installation. Build may fail.")
		return nil
	}

	c := command.FromArgv(argv)
	c.Stdin = r.Stdin
	c.Stdout = r.Stdout
	c.Stderr = r.Stderr

	out, err := r.Runner.Run(ctx, c)
	if err != nil || !out.Success() {
		r.Log.WithFields(log.Fields{"Command": c.String(), "ExitCode": out.ExitCode}).Error("Dependency installation failed")
		if ctx.Err() != nil {
			return &failure.Error{Kind: failure.Install, Op: "install", Command: c.String(), ExitCode: out.ExitCode, Err: ctx.Err()}
		}
		return failure.FromRun(failure.Install, "install", c, out, err)
	}

	r.Out.Info("Dependencies installed successfully.")
	return nil
}

func (r *Resolver) missing(ctx context.Context, kind Kind) []string {
	var bar *progressbar.ProgressBar
	if r.Progress != nil {
		bar = progressbar.NewOptions(len(r.Catalog.Packages(kind)),
			progressbar.OptionSetWriter(r.Progress),
			progressbar.OptionSetDescription("Checking dependencies"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	missing := Missing(ctx, r.Runner, kind, r.Catalog, func(pkg string, installed bool) {
		r.Log.WithFields(log.Fields{"Package": pkg, "Installed": installed}).Debug("Checked package")
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}
	return missing
}

func (r *Resolver) privileged() bool {
	if r.Privileged == nil {
		return os.Geteuid() == 0
	}
	return r.Privileged()
}
