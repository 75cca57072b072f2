// Package command runs external tools and reports how they exited.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the requested executable is not on PATH.
var ErrNotFound = errors.New("command not found")

// ElevationCommand prefixes commands that need administrative privileges.
const ElevationCommand = "sudo"

// Cmd describes one external invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string

	// Stdin, Stdout and Stderr default to nothing, discard and capture-only.
	// Stderr is always captured into the Outcome; when set it also receives a copy.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New builds a Cmd from an argv-style list.
func New(name string, args ...string) Cmd {
	return Cmd{Name: name, Args: args}
}

// FromArgv builds a Cmd from a full argv slice.
func FromArgv(argv []string) Cmd {
	if len(argv) == 0 {
		return Cmd{}
	}
	return Cmd{Name: argv[0], Args: append([]string(nil), argv[1:]...)}
}

// Argv returns the name followed by the arguments.
func (c Cmd) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command as a user would type it.
func (c Cmd) String() string {
	return Join(c.Argv())
}

// Join renders argv for display, quoting arguments that contain blanks.
func Join(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t") {
			parts[i] = `"` + a + `"`
			continue
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}

// Elevate prefixes argv with the elevation command unless the caller is
// already privileged.
func Elevate(argv []string, privileged bool) []string {
	if privileged {
		return argv
	}
	return append([]string{ElevationCommand}, argv...)
}

// Outcome is what every external invocation produces.
type Outcome struct {
	ExitCode int
	Stderr   string
}

// Success reports whether the process exited with status zero.
func (o Outcome) Success() bool {
	return o.ExitCode == 0
}

// Runner executes commands. Implementations block until the process exits.
type Runner interface {
	Run(ctx context.Context, c Cmd) (Outcome, error)
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct {
	Log log.FieldLogger
}

// NewExecRunner returns a runner logging through the standard logrus logger.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Log: log.StandardLogger()}
}

// Run starts c and waits for it. A nonzero exit is reported through the
// Outcome, not as an error; errors mean the process could not run at all
// or was cancelled through ctx.
func (r *ExecRunner) Run(ctx context.Context, c Cmd) (Outcome, error) {
	logger := r.Log
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger.WithFields(log.Fields{"Command": c.String()}).Debug("Starting process")

	path, err := exec.LookPath(c.Name)
	if err != nil {
		return Outcome{ExitCode: -1}, fmt.Errorf("%w: %s", ErrNotFound, c.Name)
	}

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout

	var stderr bytes.Buffer
	if c.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, c.Stderr)
	} else {
		cmd.Stderr = &stderr
	}

	err = cmd.Run()
	out := Outcome{Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	if ctx.Err() != nil {
		out.ExitCode = -1
		return out, fmt.Errorf("%s aborted: %w", c.Name, ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitCode(exitErr)
		logger.WithFields(log.Fields{"Command": c.String(), "ExitCode": out.ExitCode}).Debug("Command exited with failure")
		return out, nil
	}

	out.ExitCode = -1
	return out, fmt.Errorf("running %s: %w", c.Name, err)
}

// exitCode is the process's exit status, or the negated signal number when
// a signal killed it.
func exitCode(e *exec.ExitError) int {
	if ws, ok := e.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return e.ExitCode()
}
