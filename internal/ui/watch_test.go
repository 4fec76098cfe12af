package ui

import (
	"strings"
	"testing"

	"github.com/JohnDimou/claude-usage-bar/internal/history"
)

func TestProgressBar_Clamps(t *testing.T) {
	full := progressBar(150, 10)
	if !strings.Contains(full, strings.Repeat("█", 10)) {
		t.Errorf("over-limit bar should render full: %q", full)
	}
	empty := progressBar(-10, 10)
	if !strings.Contains(empty, strings.Repeat("░", 10)) {
		t.Errorf("negative bar should render empty: %q", empty)
	}
}

func TestFormatPct_OverLimit(t *testing.T) {
	got := formatPct(150)
	if !strings.Contains(got, "150%") || !strings.Contains(got, "OVER") {
		t.Errorf("over-limit values must pass through to display: %q", got)
	}
}

func TestSparkline_OldestLeft(t *testing.T) {
	// Rows arrive newest first; the sparkline renders oldest to the left.
	rows := []history.SnapshotRow{
		{SessionPct: 100}, // newest
		{SessionPct: 0},   // oldest
	}
	got := sparkline(rows, func(r history.SnapshotRow) float64 { return r.SessionPct })
	runes := []rune(got)
	if len(runes) != 2 {
		t.Fatalf("got %d cells", len(runes))
	}
	if runes[0] != '▁' || runes[1] != '█' {
		t.Errorf("expected oldest-left ordering, got %q", got)
	}
}
