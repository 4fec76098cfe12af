package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/JohnDimou/claude-usage-bar/internal/usage"
)

// Config holds notification settings.
type Config struct {
	Enabled   bool    `json:"enabled"`
	Threshold float64 `json:"threshold"` // percent; 0 falls back to 80
	Webhook   string  `json:"webhook"`
	NtfyURL   string  `json:"ntfy"`
}

const defaultThreshold = 80

// Notifier fires a system notification and optional webhook POSTs when a
// usage window crosses the configured threshold.
type Notifier struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Notifier with the given config.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger}
}

func (n *Notifier) threshold() float64 {
	if n.cfg.Threshold > 0 {
		return n.cfg.Threshold
	}
	return defaultThreshold
}

// Check compares consecutive snapshots and notifies for every window that
// crossed the threshold upward. prev may be nil on the first cycle; a first
// snapshot already above the threshold still notifies.
func (n *Notifier) Check(prev, cur *usage.Snapshot) {
	if !n.cfg.Enabled || cur == nil {
		return
	}
	n.checkWindow("Session", prevPct(prev, func(s *usage.Snapshot) float64 { return s.SessionPercent }),
		cur.SessionPercent, cur.SessionReset)
	n.checkWindow("Weekly", prevPct(prev, func(s *usage.Snapshot) float64 { return s.WeeklyPercent }),
		cur.WeeklyPercent, cur.WeeklyReset)
	n.checkWindow("Sonnet weekly", prevPct(prev, func(s *usage.Snapshot) float64 { return s.SonnetPercent }),
		cur.SonnetPercent, cur.WeeklyReset)
}

func prevPct(prev *usage.Snapshot, get func(*usage.Snapshot) float64) float64 {
	if prev == nil {
		return 0
	}
	return get(prev)
}

func (n *Notifier) checkWindow(window string, prevPct, curPct float64, reset string) {
	th := n.threshold()
	if curPct < th || prevPct >= th {
		return
	}

	msg := fmt.Sprintf("%s usage at %.0f%%", window, curPct)
	if reset != "" {
		msg += fmt.Sprintf(" (resets %s)", reset)
	}
	n.logger.Info("notify: threshold crossed", "window", window, "percent", curPct)

	n.sendSystemNotification(msg)
	if n.cfg.Webhook != "" {
		n.sendWebhook(window, curPct, reset)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(window, curPct, reset)
	}
}

func (n *Notifier) sendSystemNotification(msg string) {
	if runtime.GOOS != "darwin" {
		return
	}
	script := fmt.Sprintf(`display notification %q with title "Claude Usage"`, msg)
	exec.Command("osascript", "-e", script).Run()
}

type webhookPayload struct {
	Window    string  `json:"window"`
	Percent   float64 `json:"percent"`
	ResetsAt  string  `json:"resets_at"`
	Timestamp string  `json:"timestamp"`
}

func (n *Notifier) sendWebhook(window string, pct float64, reset string) {
	payload := webhookPayload{
		Window:    window,
		Percent:   pct,
		ResetsAt:  reset,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(n.cfg.Webhook, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: webhook failed", "err", err)
		return
	}
	resp.Body.Close()
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(window string, pct float64, reset string) {
	payload := ntfyPayload{
		Title:    fmt.Sprintf("%s usage at %.0f%%", window, pct),
		Message:  fmt.Sprintf("resets %s", reset),
		Priority: 4,
		Tags:     []string{"chart_with_upwards_trend"},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(n.cfg.NtfyURL, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: ntfy failed", "err", err)
		return
	}
	resp.Body.Close()
}
