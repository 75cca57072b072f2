// Package generator picks the CMake generator for the host and probes the
// installed CMake version.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"
	log "github.com/sirupsen/logrus"

	"github.com/aurashell/rendererbuild/internal/command"
)

// Tool is the configure and build tool.
const Tool = "cmake"

// Choice is the generator identifier passed to the configure step with -G.
type Choice string

const (
	// UnixMakefiles is used on every non-Windows host.
	UnixMakefiles Choice = "Unix Makefiles"
	// DefaultWindows is used when probing finds nothing.
	DefaultWindows Choice = "Visual Studio 17 2022"
)

// VisualStudio lists the supported IDE generators, newest first.
var VisualStudio = []Choice{
	"Visual Studio 17 2022",
	"Visual Studio 16 2019",
	"Visual Studio 15 2017",
	"Visual Studio 14 2015",
}

// MultiConfig reports whether the generator writes per-configuration
// output directories and picks the build type at build time.
func (c Choice) MultiConfig() bool {
	return strings.HasPrefix(string(c), "Visual Studio") || c == "Xcode" || c == "Ninja Multi-Config"
}

func (c Choice) String() string {
	return string(c)
}

// Match returns the first generator of VisualStudio that appears in the
// text of `cmake --help`.
func Match(helpText string) (Choice, bool) {
	for _, g := range VisualStudio {
		if strings.Contains(helpText, string(g)) {
			return g, true
		}
	}
	return "", false
}

// Selector probes the configure tool.
type Selector struct {
	Runner command.Runner
	Log    log.FieldLogger
}

// NewSelector returns a selector logging through the standard logger.
func NewSelector(r command.Runner) *Selector {
	return &Selector{Runner: r, Log: log.StandardLogger()}
}

// Select returns the generator to configure with. It never fails: when the
// probe cannot run or matches nothing the default is used.
func (s *Selector) Select(ctx context.Context, isWindows bool) Choice {
	if !isWindows {
		return UnixMakefiles
	}

	var help bytes.Buffer
	c := command.New(Tool, "--help")
	c.Stdout = &help

	out, err := s.Runner.Run(ctx, c)
	if err != nil || !out.Success() {
		reason := fmt.Sprintf("exit code %d", out.ExitCode)
		if err != nil {
			reason = err.Error()
		}
		s.Log.WithFields(log.Fields{"Reason": reason, "Generator": DefaultWindows}).Warn("Could not list CMake generators, using default")
		return DefaultWindows
	}

	if g, ok := Match(help.String()); ok {
		s.Log.WithField("Generator", g).Info("Selected generator")
		return g
	}
	s.Log.WithFields(log.Fields{"Reason": "no known Visual Studio generator", "Generator": DefaultWindows}).Warn("Using default generator")
	return DefaultWindows
}

var versionLine = regexp.MustCompile(`(?m)^cmake version (\S+)`)

// ErrNoVersion is returned when `cmake --version` prints no version line.
var ErrNoVersion = errors.New("no cmake version in output")

// ParseVersion extracts the version from `cmake --version` output.
func ParseVersion(output string) (*semver.Version, error) {
	m := versionLine.FindStringSubmatch(output)
	if m == nil {
		return nil, ErrNoVersion
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("parsing cmake version %q: %w", m[1], err)
	}
	return v, nil
}

// ProbeVersion runs `cmake --version` and parses its output.
func (s *Selector) ProbeVersion(ctx context.Context) (*semver.Version, error) {
	var stdout bytes.Buffer
	c := command.New(Tool, "--version")
	c.Stdout = &stdout

	out, err := s.Runner.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	if !out.Success() {
		return nil, fmt.Errorf("%s exited with code %d", c, out.ExitCode)
	}
	return ParseVersion(stdout.String())
}

// CheckVersion probes the installed CMake and logs a warning when it does
// not satisfy constraint. Probe failures are warnings too.
func (s *Selector) CheckVersion(ctx context.Context, constraint string) bool {
	if constraint == "" {
		return true
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		s.Log.WithError(err).WithField("Constraint", constraint).Warn("Ignoring invalid CMake version constraint")
		return true
	}

	v, err := s.ProbeVersion(ctx)
	if err != nil {
		s.Log.WithError(err).Warn("Could not determine CMake version")
		return false
	}

	if !c.Check(v) {
		s.Log.WithFields(log.Fields{"Version": v.String(), "Constraint": constraint}).Warn("CMake version does not satisfy requirement")
		return false
	}
	s.Log.WithField("Version", v.String()).Debug("CMake version ok")
	return true
}
