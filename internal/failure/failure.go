// Package failure classifies pipeline failures and renders their diagnostics.
package failure

import (
	"context"
	"errors"
	"fmt"

	"github.com/aurashell/rendererbuild/internal/command"
)

// Kind is the failure class of a pipeline stage.
type Kind int

const (
	// Detection failures are logged and the pipeline falls back.
	Detection Kind = iota
	// Install means the package installation failed or was interrupted.
	Install
	// Configure means the configure step failed, after its retry.
	Configure
	// Build means the build step exited nonzero.
	Build
	// CommandNotFound means a required tool is not on PATH.
	CommandNotFound
	// RuntimeCrash means the built program exited nonzero.
	RuntimeCrash
	// Command is any other failed invocation.
	Command
)

var kindNames = map[Kind]string{
	Detection:       "detection",
	Install:         "install",
	Configure:       "configure",
	Build:           "build",
	CommandNotFound: "command-not-found",
	RuntimeCrash:    "runtime-crash",
	Command:         "command",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified stage failure.
type Error struct {
	Kind     Kind
	Op       string // stage that failed
	Command  string // rendered command text, or the tool name for CommandNotFound
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Build:
		return fmt.Sprintf("Build step failed with exit code %s.", Hex(e.ExitCode))
	case Configure:
		return fmt.Sprintf("Configure step failed with exit code %s.", Hex(e.ExitCode))
	case RuntimeCrash:
		return fmt.Sprintf("The program crashed (exit code %s).", Hex(e.ExitCode))
	case CommandNotFound:
		return fmt.Sprintf("Command not found: %s", e.Command)
	case Install:
		if errors.Is(e.Err, context.Canceled) {
			return "Installation cancelled."
		}
		return "Failed to install dependencies."
	case Detection:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Op, e.Err)
		}
		return e.Op
	}
	if e.Err != nil && e.ExitCode == 0 {
		return fmt.Sprintf("Unexpected error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("Command failed: %s (exit code %s)", e.Command, Hex(e.ExitCode))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Hex renders an exit code as 0x followed by uppercase hex digits.
func Hex(code int) string {
	if code < 0 {
		return fmt.Sprintf("-0x%X", -code)
	}
	return fmt.Sprintf("0x%X", code)
}

// FromRun classifies a finished invocation of c. A missing executable
// always becomes CommandNotFound regardless of kind, and a process that
// could not run at all is a Command failure unless kind is Install.
func FromRun(kind Kind, op string, c command.Cmd, out command.Outcome, err error) *Error {
	if errors.Is(err, command.ErrNotFound) {
		return &Error{Kind: CommandNotFound, Op: op, Command: c.Name, ExitCode: out.ExitCode, Err: err}
	}
	if err != nil && kind != Install {
		return &Error{Kind: Command, Op: op, Command: c.String(), Stderr: out.Stderr, Err: err}
	}
	return &Error{
		Kind:     kind,
		Op:       op,
		Command:  c.String(),
		ExitCode: out.ExitCode,
		Stderr:   out.Stderr,
		Err:      err,
	}
}

// ExitStatus maps err to a process exit status: zero for nil, the failed
// tool's own status when it fits in 1..255, and 1 otherwise.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var fe *Error
	if errors.As(err, &fe) && fe.ExitCode > 0 && fe.ExitCode < 256 {
		return fe.ExitCode
	}
	return 1
}
