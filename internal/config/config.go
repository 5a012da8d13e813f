package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snapgrab/snapgrab/internal/logger"
)

// CaptureConfig holds the capture engine settings.
type CaptureConfig struct {
	// FrameTimeoutMS bounds the wait for a new accelerated frame.
	FrameTimeoutMS int `json:"frame_timeout_ms" yaml:"frame_timeout_ms"`
	// ForceFallback skips the accelerated backend entirely.
	ForceFallback bool `json:"force_fallback" yaml:"force_fallback"`
	// Display selects the X display. Empty means $DISPLAY.
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
	// JPEGQuality applies to .jpg and .jpeg save paths (1-100).
	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality"`
}

// Config represents the application configuration
type Config struct {
	Capture    CaptureConfig `json:"capture" yaml:"capture"`
	ServerPort int           `json:"server_port" yaml:"server_port"`
	LogLevel   string        `json:"log_level" yaml:"log_level"`
}

// FrameTimeout returns the configured frame wait as a duration.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.Capture.FrameTimeoutMS) * time.Millisecond
}

// Manager handles configuration loading and persistence
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager. An empty configFile
// selects the default location under the user's config directory. A
// missing file is created with defaults.
func NewManager(configFile string) (*Manager, error) {
	configPath := configFile
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(homeDir, ".config", "snapgrab", "config.yaml")
	}

	m := &Manager{configPath: configPath}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("config file not found, creating new config")
		m.config = m.getDefaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("config loaded")

	return m, nil
}

// getDefaults returns the default configuration
func (m *Manager) getDefaults() *Config {
	return &Config{
		Capture: CaptureConfig{
			FrameTimeoutMS: 500,
			JPEGQuality:    90,
		},
		ServerPort: 8080,
		LogLevel:   "info",
	}
}

// load reads the configuration from disk.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	normalize(&cfg)

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// normalize replaces unusable values with their defaults.
func normalize(cfg *Config) {
	if cfg.Capture.FrameTimeoutMS <= 0 {
		cfg.Capture.FrameTimeoutMS = 500
	}
	if cfg.Capture.JPEGQuality < 1 || cfg.Capture.JPEGQuality > 100 {
		cfg.Capture.JPEGQuality = 90
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		cfg.ServerPort = 8080
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return m.getDefaults()
	}
	cfg := *m.config
	return &cfg
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		cfg = m.getDefaults()
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("config saved")
	return nil
}

// Update replaces the whole configuration and persists it.
func (m *Manager) Update(cfg *Config) error {
	normalize(cfg)
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetPort updates the server port and persists the change
func (m *Manager) SetPort(port int) error {
	m.mu.Lock()
	if m.config == nil {
		m.config = m.getDefaults()
	}
	m.config.ServerPort = port
	m.mu.Unlock()
	return m.Save()
}

// GetPort returns the configured server port
func (m *Manager) GetPort() int {
	return m.Get().ServerPort
}

// SetLogLevel updates the log level and persists the change
func (m *Manager) SetLogLevel(level string) error {
	m.mu.Lock()
	if m.config == nil {
		m.config = m.getDefaults()
	}
	m.config.LogLevel = level
	m.mu.Unlock()
	return m.Save()
}

// GetLogLevel returns the configured log level
func (m *Manager) GetLogLevel() string {
	return m.Get().LogLevel
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the directory holding the config file
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
