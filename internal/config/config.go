// Package config holds the per-run build options and the project settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the settings file looked up in the working directory.
const DefaultFile = "rendererbuild.yaml"

// Build types passed to the configure and build steps.
const (
	BuildTypeDebug   = "Debug"
	BuildTypeRelease = "Release"
)

// ErrInvalidSettings is returned when the settings file has bad values.
var ErrInvalidSettings = errors.New("invalid settings")

// BuildConfig is built once from the command line and never changed.
type BuildConfig struct {
	Debug    bool
	Clean    bool
	SkipDeps bool
	NoRun    bool
}

// BuildType is Debug with --debug and Release otherwise.
func (c BuildConfig) BuildType() string {
	if c.Debug {
		return BuildTypeDebug
	}
	return BuildTypeRelease
}

// ConfigurePolicy decides what happens when configure fails twice.
type ConfigurePolicy string

const (
	// PolicyAbort stops the pipeline before the build step.
	PolicyAbort ConfigurePolicy = "abort"
	// PolicyContinue reports the failure and attempts the build anyway.
	PolicyContinue ConfigurePolicy = "continue"
)

// Settings describe the project being built.
type Settings struct {
	SourceDir        string          `yaml:"source_dir"`
	BuildDir         string          `yaml:"build_dir"`
	Executable       string          `yaml:"executable"`
	Jobs             int             `yaml:"jobs"`
	MinCMakeVersion  string          `yaml:"min_cmake_version"`
	ConfigureFailure ConfigurePolicy `yaml:"configure_failure"`
}

// Default returns the settings used when no file is present.
func Default() Settings {
	return Settings{
		SourceDir:        ".",
		BuildDir:         "build",
		Executable:       "renderer",
		MinCMakeVersion:  ">= 3.10",
		ConfigureFailure: PolicyAbort,
	}
}

// Load reads settings from path. A missing file yields the defaults unless
// required is set.
func Load(path string, required bool) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("reading settings %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (Settings, error) {
	s := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks every field.
func (s Settings) Validate() error {
	dir := filepath.Clean(s.BuildDir)
	switch {
	case strings.TrimSpace(s.BuildDir) == "":
		return fmt.Errorf("%w: build_dir is empty", ErrInvalidSettings)
	case dir == "." || dir == string(filepath.Separator) || dir == filepath.Clean(s.SourceDir):
		// The build directory is deleted on clean.
		return fmt.Errorf("%w: build_dir %q would delete the project", ErrInvalidSettings, s.BuildDir)
	case s.Executable == "" || strings.ContainsAny(s.Executable, `/\`):
		return fmt.Errorf("%w: executable must be a bare file name", ErrInvalidSettings)
	case s.Jobs < 0:
		return fmt.Errorf("%w: jobs must not be negative", ErrInvalidSettings)
	}

	if s.MinCMakeVersion != "" {
		if _, err := semver.NewConstraint(s.MinCMakeVersion); err != nil {
			return fmt.Errorf("%w: min_cmake_version: %v", ErrInvalidSettings, err)
		}
	}

	switch s.ConfigureFailure {
	case PolicyAbort, PolicyContinue:
	default:
		return fmt.Errorf("%w: configure_failure must be %q or %q", ErrInvalidSettings, PolicyAbort, PolicyContinue)
	}
	return nil
}

// ExecutableName adds the platform suffix.
func (s Settings) ExecutableName(isWindows bool) string {
	if isWindows {
		return s.Executable + ".exe"
	}
	return s.Executable
}

// ParallelJobs is the configured job count, or the CPU count when unset.
func (s Settings) ParallelJobs() int {
	if s.Jobs > 0 {
		return s.Jobs
	}
	return runtime.NumCPU()
}
