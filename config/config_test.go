package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
http:
  port: 9090
  read_timeout: 3s
model:
  path: artifacts/tree.json
  schema_path: artifacts/columns.json
  strict: true
log:
  level: debug
ui:
  locale: de
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "decision_tree", cfg.Model.Type)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, t.TempDir(), sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, "artifacts/tree.json", cfg.Model.Path)
	assert.True(t, cfg.Model.Strict)
	assert.Equal(t, 1024, cfg.Model.CacheSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "de", cfg.UI.Locale)
	assert.Equal(t, "Heart Disease Risk Predictor", cfg.UI.Title)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":   "http: [port",
		"bad port":   "http:\n  port: 70000\n",
		"no model":   "model:\n  path: \"\"\n",
		"test ratio": "training:\n  test_ratio: 1.5\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, t.TempDir(), content))
			assert.Error(t, err)
		})
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "log:\n  level: info\n")

	levels := make(chan string, 4)
	watcher, err := NewWatcher(path, func(cfg *Config, err error) {
		if err == nil {
			levels <- cfg.Log.Level
		}
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "info", watcher.Snapshot().Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeConfig(t, dir, "log:\n  level: debug\n")

	select {
	case level := <-levels:
		assert.Equal(t, "debug", level)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	assert.Equal(t, "debug", watcher.Snapshot().Log.Level)
	assert.GreaterOrEqual(t, watcher.ReloadCount(), uint32(1))
}
