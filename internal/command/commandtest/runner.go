// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aurashell/rendererbuild/internal/command"
)

// Response is one scripted reply.
type Response struct {
	Outcome command.Outcome
	Err     error
	Stdout  string
	Effect  func(c command.Cmd)
}

// OK is a successful reply.
func OK() Response { return Response{} }

// Output is a successful reply that writes s to the command's stdout.
func Output(s string) Response { return Response{Stdout: s} }

// Exit is a reply with the given exit code and stderr text.
func Exit(code int, stderr string) Response {
	return Response{Outcome: command.Outcome{ExitCode: code, Stderr: stderr}}
}

// NotFound is the reply for a tool missing from PATH.
func NotFound(name string) Response {
	return Response{
		Outcome: command.Outcome{ExitCode: -1},
		Err:     fmt.Errorf("%w: %s", command.ErrNotFound, name),
	}
}

type rule struct {
	prefix    string
	responses []Response
	served    int
}

// Runner matches each command's rendered text against registered prefixes,
// compared word by word.
// Responses for a prefix are served in order and the last one repeats.
// Unmatched commands succeed.
type Runner struct {
	Calls []command.Cmd
	rules []*rule
}

// New returns an empty scripted runner.
func New() *Runner {
	return &Runner{}
}

// On registers replies for commands whose rendered text starts with prefix.
// Earlier registrations win.
func (r *Runner) On(prefix string, responses ...Response) *Runner {
	r.rules = append(r.rules, &rule{prefix: prefix, responses: responses})
	return r
}

// Run implements command.Runner.
func (r *Runner) Run(ctx context.Context, c command.Cmd) (command.Outcome, error) {
	r.Calls = append(r.Calls, c)

	resp := OK()
	text := c.String()
	for _, ru := range r.rules {
		if !matches(text, ru.prefix) || len(ru.responses) == 0 {
			continue
		}
		i := ru.served
		if i >= len(ru.responses) {
			i = len(ru.responses) - 1
		}
		ru.served++
		resp = ru.responses[i]
		break
	}

	if resp.Stdout != "" && c.Stdout != nil {
		_, _ = io.WriteString(c.Stdout, resp.Stdout)
	}
	if resp.Outcome.Stderr != "" && c.Stderr != nil {
		_, _ = io.WriteString(c.Stderr, resp.Outcome.Stderr)
	}
	if resp.Effect != nil {
		resp.Effect(c)
	}
	return resp.Outcome, resp.Err
}

// Count returns how many recorded commands start with prefix.
func (r *Runner) Count(prefix string) int {
	n := 0
	for _, c := range r.Calls {
		if matches(c.String(), prefix) {
			n++
		}
	}
	return n
}

// matches reports whether prefix is text or a whole-word prefix of it.
func matches(text, prefix string) bool {
	return text == prefix || strings.HasPrefix(text, prefix+" ")
}

// Commands returns every recorded command as rendered text.
func (r *Runner) Commands() []string {
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.String()
	}
	return out
}
