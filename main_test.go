package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurashell/rendererbuild/internal/command/commandtest"
)

// settingsFile writes a settings file pointing the build at a temp dir.
func settingsFile(t *testing.T) (path, buildDir string) {
	t.Helper()
	root := t.TempDir()
	buildDir = filepath.Join(root, "build")
	path = filepath.Join(root, "rendererbuild.yaml")
	data := "source_dir: " + root + "\nbuild_dir: " + buildDir + "\njobs: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path, buildDir
}

func TestRunBuildFailureExitStatus(t *testing.T) {
	cfg, _ := settingsFile(t)
	runner := commandtest.New().On("cmake --build", commandtest.Exit(2, "make: *** [all] Error 2"))
	var stdout, stderr bytes.Buffer

	status := run(context.Background(), []string{"--skip-deps", "--config", cfg}, runner, &stdout, &stderr)

	assert.Equal(t, 2, status)
	assert.Contains(t, stderr.String(), "Build step failed with exit code 0x2.")
	assert.Zero(t, runner.Count("sh"))
}

func TestRunSuccess(t *testing.T) {
	cfg, buildDir := settingsFile(t)
	var stdout, stderr bytes.Buffer

	status := run(context.Background(), []string{"--skip-deps", "--no-run", "--config", cfg}, commandtest.New(), &stdout, &stderr)

	assert.Equal(t, 0, status)
	assert.Empty(t, stderr.String())
	assert.Contains(t, stdout.String(), "Build successful: "+filepath.Join(buildDir, "renderer"))
}

func TestRunMissingSettingsFile(t *testing.T) {
	runner := commandtest.New()
	var stdout, stderr bytes.Buffer

	status := run(context.Background(), []string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, runner, &stdout, &stderr)

	assert.Equal(t, 1, status)
	assert.Contains(t, stderr.String(), "reading settings")
	assert.Empty(t, runner.Calls)
}

func TestRunBadFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	status := run(context.Background(), []string{"--fast"}, commandtest.New(), &stdout, &stderr)

	assert.Equal(t, 1, status)
	assert.Contains(t, stderr.String(), "unknown flag: --fast")
}

func TestRunVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer

	status := run(context.Background(), []string{"--version"}, commandtest.New(), &stdout, &stderr)

	assert.Equal(t, 0, status)
	assert.Contains(t, stdout.String(), version)
}
