package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/c3d/pkg/config"
)

func TestDefaultIsUsable(t *testing.T) {
	cfg := config.Default()
	assert.GreaterOrEqual(t, cfg.Sockets, 2)
	assert.NotEmpty(t, cfg.Values)
	assert.Greater(t, cfg.MaxStates, 0)
	assert.Greater(t, cfg.MaxDepth, 0)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.ini")
	contents := "[model]\nsockets = 4\nmax_states = 777\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Sockets)
	assert.Equal(t, 777, cfg.MaxStates)
	// untouched keys keep their default
	assert.Equal(t, config.Default().MaxDepth, cfg.MaxDepth)
}

func TestLoadRejectsTooFewSockets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.ini")
	require.NoError(t, os.WriteFile(path, []byte("[model]\nsockets = 1\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.ini"))
	require.Error(t, err)
}
