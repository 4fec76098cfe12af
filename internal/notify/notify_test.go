package notify_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JohnDimou/claude-usage-bar/internal/notify"
	"github.com/JohnDimou/claude-usage-bar/internal/usage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNtfyNotification(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	n := notify.New(notify.Config{
		Enabled:   true,
		Threshold: 80,
		NtfyURL:   srv.URL + "/usage",
	}, discardLogger())

	n.Check(nil, &usage.Snapshot{SessionPercent: 85, SessionReset: "5pm"})

	if received == nil {
		t.Fatal("no POST received")
	}
	if received["title"] != "Session usage at 85%" {
		t.Errorf("unexpected title: %v", received["title"])
	}
}

func TestCheck_FiresOnlyOnUpwardCrossing(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
		w.WriteHeader(200)
	}))
	defer srv.Close()

	n := notify.New(notify.Config{Enabled: true, Threshold: 80, NtfyURL: srv.URL}, discardLogger())

	// Below threshold: nothing.
	n.Check(nil, &usage.Snapshot{SessionPercent: 50})
	if posts != 0 {
		t.Fatalf("no notification expected below threshold, got %d", posts)
	}

	// Crossing up: one notification.
	n.Check(&usage.Snapshot{SessionPercent: 50}, &usage.Snapshot{SessionPercent: 85})
	if posts != 1 {
		t.Fatalf("expected 1 notification on crossing, got %d", posts)
	}

	// Still above: no repeat.
	n.Check(&usage.Snapshot{SessionPercent: 85}, &usage.Snapshot{SessionPercent: 90})
	if posts != 1 {
		t.Errorf("expected no repeat while staying above threshold, got %d", posts)
	}
}

// Webhook responses must be drained and closed so the transport can reuse
// the connection; a leaked body forces a fresh dial for every notification.
func TestCheck_WebhookConnectionReused(t *testing.T) {
	addrs := map[string]struct{}{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addrs[r.RemoteAddr] = struct{}{}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := notify.New(notify.Config{Enabled: true, Threshold: 80, Webhook: srv.URL}, discardLogger())
	n.Check(&usage.Snapshot{SessionPercent: 50}, &usage.Snapshot{SessionPercent: 85})
	n.Check(&usage.Snapshot{SessionPercent: 85, WeeklyPercent: 50},
		&usage.Snapshot{SessionPercent: 85, WeeklyPercent: 85})

	if len(addrs) != 1 {
		t.Errorf("expected one reused connection, saw %d", len(addrs))
	}
}

func TestCheck_WebhookErrorLogged(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Invalid URL forces a POST error.
	n := notify.New(notify.Config{Enabled: true, Webhook: "http://127.0.0.1:1"}, logger)
	n.Check(nil, &usage.Snapshot{WeeklyPercent: 95})

	if !strings.Contains(buf.String(), "webhook") {
		t.Errorf("expected warn log mentioning webhook, got: %q", buf.String())
	}
}

func TestCheck_DisabledNoOp(t *testing.T) {
	n := notify.New(notify.Config{Enabled: false}, discardLogger())
	// Must not panic or POST anywhere.
	n.Check(nil, &usage.Snapshot{SessionPercent: 100})
	n.Check(nil, nil)
}
