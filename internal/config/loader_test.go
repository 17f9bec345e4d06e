package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolateHome(t)

	cfg, err := LoadDefault()
	require.NoError(t, err)
	require.Equal(t, 50, cfg.Loader.PageSize)
	require.Equal(t, time.Millisecond, cfg.Landing.PollInterval)
	require.Equal(t, filepath.Join(home, ".local", "share", "threadview", "threadview.db"), cfg.DatabasePath())
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "threadview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: ~/data/tv.db
loader:
  initial_window_size: 20
  page_size: 10
  max_window_size: 60
landing:
  poll_interval: 2ms
`), 0o644))

	t.Setenv("THREADVIEW_LOADER_PAGE_SIZE", "15")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, 20, cfg.Loader.InitialWindowSize)
	require.Equal(t, 15, cfg.Loader.PageSize)
	require.Equal(t, 60, cfg.Loader.MaxWindowSize)
	require.Equal(t, 2*time.Millisecond, cfg.Landing.PollInterval)
	require.Equal(t, filepath.Join(home, "data", "tv.db"), cfg.DatabasePath())
}

func TestValidateRejectsSmallMaxWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loader.MaxWindowSize = cfg.Loader.PageSize - 1
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Landing.PollInterval = 0
	require.Error(t, cfg.Validate())
}

func TestLoadFromMissingExplicitFileFails(t *testing.T) {
	home := isolateHome(t)
	_, err := LoadFromFile(filepath.Join(home, "missing.yaml"))
	require.Error(t, err)
}
