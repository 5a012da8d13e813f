package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewManagerCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)
	require.Equal(t, path, m.GetConfigPath())

	// The file is written on first run.
	_, err = os.Stat(path)
	require.NoError(t, err)

	cfg := m.Get()
	require.Equal(t, 500, cfg.Capture.FrameTimeoutMS)
	require.Equal(t, 500*time.Millisecond, cfg.FrameTimeout())
	require.False(t, cfg.Capture.ForceFallback)
	require.Equal(t, 90, cfg.Capture.JPEGQuality)
	require.Equal(t, 8080, cfg.ServerPort)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestNewManagerLoadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `capture:
  frame_timeout_ms: 1200
  force_fallback: true
  display: ":1"
  jpeg_quality: 70
server_port: 9090
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	require.Equal(t, 1200, cfg.Capture.FrameTimeoutMS)
	require.Equal(t, 1200*time.Millisecond, cfg.FrameTimeout())
	require.True(t, cfg.Capture.ForceFallback)
	require.Equal(t, ":1", cfg.Capture.Display)
	require.Equal(t, 70, cfg.Capture.JPEGQuality)
	require.Equal(t, 9090, cfg.ServerPort)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestNewManagerNormalizesBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `capture:
  frame_timeout_ms: -5
  jpeg_quality: 400
server_port: 70000
log_level: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	require.Equal(t, 500, cfg.Capture.FrameTimeoutMS)
	require.Equal(t, 90, cfg.Capture.JPEGQuality)
	require.Equal(t, 8080, cfg.ServerPort)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestNewManagerRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0644))

	_, err := NewManager(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config")
}

func TestManagerUpdateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)

	cfg := m.Get()
	cfg.Capture.FrameTimeoutMS = 2000
	cfg.Capture.ForceFallback = true
	cfg.ServerPort = 9999
	require.NoError(t, m.Update(cfg))

	// A fresh manager reads the persisted values back.
	reloaded, err := NewManager(path)
	require.NoError(t, err)
	got := reloaded.Get()
	require.Equal(t, 2000, got.Capture.FrameTimeoutMS)
	require.True(t, got.Capture.ForceFallback)
	require.Equal(t, 9999, got.ServerPort)
}

func TestManagerGetReturnsCopy(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	cfg := m.Get()
	cfg.ServerPort = 1

	require.Equal(t, 8080, m.Get().ServerPort)
}

func TestManagerSettersPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.SetPort(9090))
	require.NoError(t, m.SetLogLevel("debug"))
	require.Equal(t, 9090, m.GetPort())
	require.Equal(t, "debug", m.GetLogLevel())

	reloaded, err := NewManager(path)
	require.NoError(t, err)
	require.Equal(t, 9090, reloaded.GetPort())
	require.Equal(t, "debug", reloaded.GetLogLevel())
}

func TestManagerSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	m, err := NewManager(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Dir(path), m.GetConfigDir())
}
