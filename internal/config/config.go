package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appName = "pulpit"

// RemoteConfig configures the remote control server and its worker process.
type RemoteConfig struct {
	Port                 int    `json:"port"`
	EnableAuth           bool   `json:"enable_auth,omitempty"` // accepted, not enforced
	PIN                  string `json:"pin,omitempty"`
	StartTimeoutSeconds  int    `json:"start_timeout_seconds"`
	StopGraceMillis      int    `json:"stop_grace_millis"`
	LookupTimeoutSeconds int    `json:"lookup_timeout_seconds"`
	MaxMessageBytes      int64  `json:"max_message_bytes"`
}

// Config represents application configuration
type Config struct {
	LogLevel     string       `json:"log_level"` // debug, info, warn, error, none
	LogPath      string       `json:"log_path,omitempty"`
	DatabasePath string       `json:"database_path,omitempty"`
	Remote       RemoteConfig `json:"remote"`
}

const (
	DefaultPort                 = 8080
	DefaultStartTimeoutSeconds  = 10
	DefaultStopGraceMillis      = 1000
	DefaultLookupTimeoutSeconds = 5
	DefaultMaxMessageBytes      = 64 * 1024
)

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", appName)
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", appName)
	default:
		return defaultConfigDir()
	}
}

// StateDir is where runtime files (log, worker pid file) live.
func StateDir() string {
	return defaultStateDir()
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()

	return &Config{
		LogLevel:     "info",
		LogPath:      filepath.Join(stateDir, appName+".log"),
		DatabasePath: filepath.Join(defaultConfigDir(), "library.db"),
		Remote: RemoteConfig{
			Port:                 DefaultPort,
			StartTimeoutSeconds:  DefaultStartTimeoutSeconds,
			StopGraceMillis:      DefaultStopGraceMillis,
			LookupTimeoutSeconds: DefaultLookupTimeoutSeconds,
			MaxMessageBytes:      DefaultMaxMessageBytes,
		},
	}
}

// Load loads configuration from file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	// Unmarshal into default config (overrides only provided fields)
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	config.backfill()
	return config, nil
}

// backfill restores defaults for fields explicitly zeroed in the file.
func (c *Config) backfill() {
	defaults := DefaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.LogPath == "" {
		c.LogPath = defaults.LogPath
	}
	if c.DatabasePath == "" {
		c.DatabasePath = defaults.DatabasePath
	}
	if c.Remote.Port == 0 {
		c.Remote.Port = defaults.Remote.Port
	}
	if c.Remote.StartTimeoutSeconds <= 0 {
		c.Remote.StartTimeoutSeconds = defaults.Remote.StartTimeoutSeconds
	}
	if c.Remote.StopGraceMillis <= 0 {
		c.Remote.StopGraceMillis = defaults.Remote.StopGraceMillis
	}
	if c.Remote.LookupTimeoutSeconds <= 0 {
		c.Remote.LookupTimeoutSeconds = defaults.Remote.LookupTimeoutSeconds
	}
	if c.Remote.MaxMessageBytes <= 0 {
		c.Remote.MaxMessageBytes = defaults.Remote.MaxMessageBytes
	}
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Remote.Port < 0 || c.Remote.Port > 65535 {
		return fmt.Errorf("remote.port %d out of range", c.Remote.Port)
	}
	if c.Remote.EnableAuth && c.Remote.PIN == "" {
		return fmt.Errorf("remote.enable_auth requires remote.pin")
	}
	return nil
}

// ApplyEnv lets PULPIT_LOG_LEVEL and PULPIT_LOG_PATH override file values.
func (c *Config) ApplyEnv() {
	if envLevel := strings.TrimSpace(os.Getenv("PULPIT_LOG_LEVEL")); envLevel != "" {
		c.LogLevel = envLevel
	}
	if envPath := strings.TrimSpace(os.Getenv("PULPIT_LOG_PATH")); envPath != "" {
		c.LogPath = envPath
	}
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// GetConfigPath returns the default config path
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}
