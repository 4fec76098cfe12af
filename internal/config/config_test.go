package config_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JohnDimou/claude-usage-bar/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RefreshIntervalMinutes != 5 {
		t.Errorf("default interval: got %d want 5", cfg.RefreshIntervalMinutes)
	}
	if !cfg.RefreshOnOpen {
		t.Error("refresh-on-open should default to true")
	}
	if cfg.FetchTimeout() != 60*time.Second {
		t.Errorf("default timeout: got %v", cfg.FetchTimeout())
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"refreshIntervalMinutes": 15, "refreshOnOpen": false}`), 0644)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RefreshIntervalMinutes != 15 {
		t.Errorf("got %d want 15", cfg.RefreshIntervalMinutes)
	}
	if cfg.RefreshOnOpen {
		t.Error("refresh-on-open should be false")
	}
	// Unspecified fields keep their defaults.
	if cfg.Notifications.Threshold != 80 {
		t.Errorf("threshold default lost: got %v", cfg.Notifications.Threshold)
	}
}

func TestRefreshIntervalNever(t *testing.T) {
	cfg := config.Defaults()
	cfg.RefreshIntervalMinutes = 0
	if cfg.RefreshInterval() != 0 {
		t.Errorf("0 minutes must mean never, got %v", cfg.RefreshInterval())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.Defaults()
	cfg.RefreshIntervalMinutes = 30

	if err := config.Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.RefreshIntervalMinutes != 30 {
		t.Errorf("round trip lost interval: got %d", got.RefreshIntervalMinutes)
	}
}

func TestEnsureJWTSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := config.Defaults()
	cfg.Server.Enabled = true

	if err := config.EnsureJWTSecret(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Auth.JWTSecret == "" {
		t.Fatal("secret not generated")
	}

	// Second call keeps the existing secret.
	first := cfg.Server.Auth.JWTSecret
	if err := config.EnsureJWTSecret(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Auth.JWTSecret != first {
		t.Error("secret regenerated on second call")
	}

	// And it was persisted.
	loaded, _ := config.Load(path)
	if loaded.Server.Auth.JWTSecret != first {
		t.Error("secret not persisted to disk")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"refreshIntervalMinutes": 5}`), 0644)

	changed := make(chan config.Config, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := config.Watch(path, func(c config.Config) { changed <- c }, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	os.WriteFile(path, []byte(`{"refreshIntervalMinutes": 42}`), 0644)

	select {
	case cfg := <-changed:
		if cfg.RefreshIntervalMinutes != 42 {
			t.Errorf("reloaded interval: got %d want 42", cfg.RefreshIntervalMinutes)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("onChange was not invoked after config write")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{}`), 0644)

	changed := make(chan config.Config, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := config.Watch(path, func(c config.Config) { changed <- c }, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0644)

	select {
	case <-changed:
		t.Fatal("unrelated file should not trigger a reload")
	case <-time.After(300 * time.Millisecond):
	}
}
