package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurashell/rendererbuild/internal/build"
	"github.com/aurashell/rendererbuild/internal/command"
	"github.com/aurashell/rendererbuild/internal/command/commandtest"
	"github.com/aurashell/rendererbuild/internal/config"
	"github.com/aurashell/rendererbuild/internal/console"
	"github.com/aurashell/rendererbuild/internal/deps"
	"github.com/aurashell/rendererbuild/internal/failure"
)

type fixture struct {
	p       *Pipeline
	runner  *commandtest.Runner
	out     *bytes.Buffer
	dir     string
	removed int
	vars    map[string]string
}

func newFixture(t *testing.T, cfg config.BuildConfig, isWindows bool) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		runner: commandtest.New(),
		out:    &bytes.Buffer{},
		dir:    filepath.Join(root, "build"),
		vars:   map[string]string{},
	}

	settings := config.Default()
	settings.SourceDir = root
	settings.BuildDir = f.dir
	settings.Jobs = 2

	f.p = New(cfg, settings, f.runner, console.New(f.out), isWindows)
	logger, _ := test.NewNullLogger()
	f.p.SetLogger(logger)

	f.p.Resolver.GOOS = "linux"
	f.p.Resolver.Catalog = deps.NewCatalog(map[deps.Kind][]string{deps.Apt: {"libwayland-dev"}})
	f.p.Resolver.Confirm = func(context.Context, string) bool { return true }
	f.p.Resolver.Privileged = func() bool { return false }
	f.p.Resolver.Progress = nil
	f.p.Resolver.Stdin, f.p.Resolver.Stdout, f.p.Resolver.Stderr = nil, io.Discard, io.Discard

	f.p.Builder.Stdout, f.p.Builder.Stderr = io.Discard, io.Discard
	f.p.Builder.RemoveAll = func(dir string) error {
		f.removed++
		return build.RemoveTree(dir)
	}

	f.p.Guard.Getenv = func(k string) string { return f.vars[k] }
	f.p.Guard.Stdin, f.p.Guard.Stdout, f.p.Guard.Stderr = nil, io.Discard, io.Discard
	return f
}

// produces simulates the build tool writing the program to rel.
func (f *fixture) produces(t *testing.T, rel string) commandtest.Response {
	return commandtest.Response{Effect: func(command.Cmd) {
		path := filepath.Join(f.dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("\x7fELF"), 0o644))
	}}
}

func (f *fixture) ran(prefix string) bool {
	return f.runner.Count(prefix) > 0
}

func TestHeadlessBuildSucceedsWithoutRunning(t *testing.T) {
	f := newFixture(t, config.BuildConfig{}, false)
	f.runner.On("cmake --build", f.produces(t, "renderer"))

	err := f.p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, failure.ExitStatus(err))

	assert.False(t, f.ran("sh"))
	out := f.out.String()
	assert.Contains(t, out, "Headless environment detected. Skipping execution.")
	assert.Contains(t, out, "Build successful: "+filepath.Join(f.dir, "renderer"))

	// apt answered first, its one package is installed, nothing was installed.
	assert.True(t, f.ran("dpkg -s libwayland-dev"))
	assert.False(t, f.ran("sudo"))
}

func TestBuildFailureStopsBeforeRun(t *testing.T) {
	f := newFixture(t, config.BuildConfig{SkipDeps: true}, false)
	f.vars["DISPLAY"] = ":0"
	f.runner.On("cmake --build", commandtest.Exit(2, "make: *** [all] Error 2"))

	err := f.p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0x2")
	assert.Equal(t, 2, failure.ExitStatus(err))
	assert.False(t, f.ran("sh"))
	assert.False(t, f.ran("apt --version"))
}

func TestConfigureRetryReachesBuildOnce(t *testing.T) {
	f := newFixture(t, config.BuildConfig{SkipDeps: true}, false)
	writeCache := commandtest.Response{Effect: func(command.Cmd) {
		require.NoError(t, os.MkdirAll(f.dir, 0o755))
	}}
	failed := writeCache
	failed.Outcome = command.Outcome{ExitCode: 1, Stderr: "CMake Error: Could not create named generator"}
	f.runner.On("cmake -S", failed, writeCache)

	require.NoError(t, f.p.Run(context.Background()))
	assert.Equal(t, 2, f.runner.Count("cmake -S"))
	assert.Equal(t, 1, f.runner.Count("cmake --build"))
	assert.Equal(t, 1, f.removed)
	assert.DirExists(t, f.dir)
}

func TestInstallFailureAbortsBeforeBuild(t *testing.T) {
	f := newFixture(t, config.BuildConfig{}, false)
	f.runner.
		On("dpkg -s libwayland-dev", commandtest.Exit(1, "package 'libwayland-dev' is not installed")).
		On("sudo apt install", commandtest.Exit(100, "E: Unable to locate package"))

	err := f.p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Failed to install dependencies.", err.Error())
	assert.Equal(t, 100, failure.ExitStatus(err))
	assert.False(t, f.ran("cmake"))
}

func TestCleanRemovesBuildDirectoryFirst(t *testing.T) {
	f := newFixture(t, config.BuildConfig{Clean: true, SkipDeps: true}, false)
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "CMakeFiles"), 0o755))
	f.runner.On("cmake -S", commandtest.Response{Effect: func(command.Cmd) {
		assert.NoDirExists(t, f.dir)
	}})

	require.NoError(t, f.p.Run(context.Background()))
	assert.Equal(t, 1, f.removed)
	assert.True(t, strings.HasPrefix(f.out.String(), "Cleaning build directory...\n"))
}

func TestOldCMakeOnlyWarns(t *testing.T) {
	f := newFixture(t, config.BuildConfig{SkipDeps: true, Debug: true}, false)
	f.runner.
		On("cmake --version", commandtest.Output("cmake version 3.5.1\n")).
		On("cmake --build", f.produces(t, filepath.Join("Debug", "renderer")))

	require.NoError(t, f.p.Run(context.Background()))
	assert.Contains(t, f.out.String(), "Build successful: "+filepath.Join(f.dir, "Debug", "renderer"))
	assert.Contains(t, f.runner.Commands(), "cmake --build "+f.dir+" --config Debug --parallel 2")
}

func TestWindowsProbesGeneratorAndRuns(t *testing.T) {
	f := newFixture(t, config.BuildConfig{}, true)
	f.p.Resolver.GOOS = "windows"
	f.vars["WAYLAND_DISPLAY"] = "wayland-0"
	f.runner.
		On("cmake --help", commandtest.Output("Generators\n  Visual Studio 16 2019 = Generates Visual Studio 2019 project files.\n")).
		On("cmake --build", f.produces(t, filepath.Join("Release", "renderer.exe")))

	require.NoError(t, f.p.Run(context.Background()))

	var configure command.Cmd
	for _, c := range f.runner.Calls {
		if c.Name == "cmake" && len(c.Args) > 0 && c.Args[0] == "-S" {
			configure = c
		}
	}
	assert.Contains(t, configure.Args, "Visual Studio 16 2019")
	assert.NotContains(t, configure.String(), "CMAKE_BUILD_TYPE")
	assert.True(t, f.ran(filepath.Join(f.dir, "Release", "renderer.exe")))
	assert.False(t, f.ran("apt --version"))
}

func TestNoRunFlag(t *testing.T) {
	f := newFixture(t, config.BuildConfig{SkipDeps: true, NoRun: true}, false)
	f.vars["DISPLAY"] = ":0"
	f.runner.On("cmake --build", f.produces(t, "renderer"))

	require.NoError(t, f.p.Run(context.Background()))
	assert.False(t, f.ran("sh"))
	assert.Contains(t, f.out.String(), "Build successful:")
}
