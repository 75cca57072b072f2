// Package step runs the named external invocations of the pipeline and
// classifies their failures.
package step

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/aurashell/rendererbuild/internal/command"
	"github.com/aurashell/rendererbuild/internal/console"
	"github.com/aurashell/rendererbuild/internal/failure"
)

// Step is one pipeline invocation.
type Step struct {
	Name string // shown next to the command, e.g. "CMake build"
	Op   string // stage name used in diagnostics
	Kind failure.Kind
	Cmd  command.Cmd
}

// Runner announces each step on the console and logs it before running.
type Runner struct {
	Commands command.Runner
	Out      *console.Printer
	Log      log.FieldLogger
}

// Run executes s. The returned failure is nil only when the command ran
// and exited zero.
func (r *Runner) Run(ctx context.Context, s Step) (command.Outcome, *failure.Error) {
	text := s.Cmd.String()
	r.Out.Command(text, s.Name)
	r.Log.WithFields(log.Fields{"Command": text, "Step": s.Name}).Info("Executing a command")

	out, err := r.Commands.Run(ctx, s.Cmd)
	if err == nil && out.Success() {
		return out, nil
	}

	fe := failure.FromRun(s.Kind, s.Op, s.Cmd, out, err)
	r.Log.WithFields(log.Fields{
		"Command":  text,
		"Step":     s.Name,
		"Kind":     fe.Kind,
		"ExitCode": failure.Hex(out.ExitCode),
	}).Error("Step failed")
	return out, fe
}
