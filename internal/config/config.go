package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type HistoryConfig struct {
	Enabled  bool `json:"enabled"`
	KeepDays int  `json:"keepDays"`
}

type NotificationsConfig struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"`
	Webhook   string  `json:"webhook"`
	NtfyURL   string  `json:"ntfy"`
}

type AuthConfig struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"` // bcrypt
	JWTSecret    string `json:"jwtSecret"`
}

type ServerConfig struct {
	Enabled bool       `json:"enabled"`
	Port    int        `json:"port"`
	Host    string     `json:"host"`
	Auth    AuthConfig `json:"auth"`
}

type Config struct {
	RefreshIntervalMinutes int    `json:"refreshIntervalMinutes"` // 0 = never
	RefreshOnOpen          bool   `json:"refreshOnOpen"`
	FetchTimeoutSeconds    int    `json:"fetchTimeoutSeconds"`
	InterpreterPath        string `json:"interpreterPath"` // optional override
	ScriptPath             string `json:"scriptPath"`      // optional override
	LogDir                 string `json:"logDir"`
	LogLevel               string `json:"logLevel"`

	History       HistoryConfig       `json:"history"`
	Notifications NotificationsConfig `json:"notifications"`
	Server        ServerConfig        `json:"server"`
}

func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		RefreshIntervalMinutes: 5,
		RefreshOnOpen:          true,
		FetchTimeoutSeconds:    60,
		LogDir:                 filepath.Join(home, ".claude-usage-bar", "logs"),
		LogLevel:               "info",
		History: HistoryConfig{
			Enabled:  true,
			KeepDays: 30,
		},
		Notifications: NotificationsConfig{
			Threshold: 80,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8377,
			Host:    "127.0.0.1",
		},
	}
}

func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude-usage-bar", "config.json")
}

func DBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude-usage-bar", "history.db")
}

// RefreshInterval converts the configured minutes to a duration; 0 disables
// scheduled refreshes.
func (c Config) RefreshInterval() time.Duration {
	if c.RefreshIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

func (c Config) FetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// EnsureJWTSecret generates and persists a random signing secret on first run
// so status-server tokens survive restarts. No-op when a secret already
// exists or the server is disabled.
func EnsureJWTSecret(path string, cfg *Config) error {
	if !cfg.Server.Enabled || cfg.Server.Auth.JWTSecret != "" {
		return nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}
	cfg.Server.Auth.JWTSecret = hex.EncodeToString(b)
	return Save(path, *cfg)
}
