package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/JohnDimou/claude-usage-bar/internal/history"
	"github.com/JohnDimou/claude-usage-bar/internal/manager"
)

const sparkChars = "▁▂▃▄▅▆▇█"

// Watch is a full-screen terminal dashboard over the live usage state.
// R triggers a manual fetch (the single-flight guard applies), Q or Escape
// quits.
type Watch struct {
	app   *tview.Application
	view  *tview.TextView
	mgr   *manager.Manager
	store *history.DB // nil hides the sparkline section
}

func NewWatch(mgr *manager.Manager, store *history.DB) *Watch {
	w := &Watch{
		app:   tview.NewApplication(),
		view:  tview.NewTextView(),
		mgr:   mgr,
		store: store,
	}
	w.view.SetBorder(true).SetTitle(" Claude Usage ").SetTitleAlign(tview.AlignLeft)
	w.view.SetDynamicColors(true)
	w.view.SetBackgroundColor(tcell.ColorDefault)

	w.view.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Rune() == 'q', event.Rune() == 'Q':
			w.app.Stop()
			return nil
		case event.Rune() == 'r', event.Rune() == 'R':
			w.mgr.TriggerFetch()
			return nil
		}
		return event
	})
	return w
}

// Run blocks until the user quits. The caller wires the manager's onUpdate
// callback to Reload so completed fetch cycles redraw the screen.
func (w *Watch) Run() error {
	w.view.SetText(w.buildText())
	w.mgr.TriggerFetch()
	return w.app.SetRoot(w.view, true).Run()
}

// Reload redraws from the current manager state. Safe to call from any
// goroutine.
func (w *Watch) Reload() {
	w.app.QueueUpdateDraw(func() {
		w.view.SetText(w.buildText())
	})
}

func (w *Watch) buildText() string {
	var sb strings.Builder
	snap, lastErr := w.mgr.Current()

	sb.WriteString("\n")
	if snap == nil && lastErr == "" {
		sb.WriteString("  [yellow]Fetching usage...[-]\n")
		sb.WriteString("\n  [green]R[-] refresh  [green]Q/Esc[-] quit")
		return sb.String()
	}

	if snap != nil {
		sb.WriteString("  [yellow]Current session[-]\n")
		sb.WriteString(fmt.Sprintf("  %s  %s\n", progressBar(snap.SessionPercent, 30), formatPct(snap.SessionPercent)))
		if snap.SessionReset != "" {
			sb.WriteString(fmt.Sprintf("  Resets %s\n", snap.SessionReset))
		}
		sb.WriteString("\n  [yellow]Current week (all models)[-]\n")
		sb.WriteString(fmt.Sprintf("  %s  %s\n", progressBar(snap.WeeklyPercent, 30), formatPct(snap.WeeklyPercent)))
		if snap.WeeklyReset != "" {
			sb.WriteString(fmt.Sprintf("  Resets %s\n", snap.WeeklyReset))
		}
		sb.WriteString("\n  [yellow]Current week (Sonnet only)[-]\n")
		sb.WriteString(fmt.Sprintf("  %s  %s\n", progressBar(snap.SonnetPercent, 30), formatPct(snap.SonnetPercent)))
		sb.WriteString("\n")
	}

	if w.store != nil {
		if rows, err := w.store.RecentSnapshots(48); err == nil && len(rows) > 1 {
			sb.WriteString("  [yellow]History (newest right)[-]\n")
			sb.WriteString(fmt.Sprintf("  session %s\n",
				sparkline(rows, func(r history.SnapshotRow) float64 { return r.SessionPct })))
			sb.WriteString(fmt.Sprintf("  weekly  %s\n",
				sparkline(rows, func(r history.SnapshotRow) float64 { return r.WeeklyPct })))
			sb.WriteString("\n")
		}
	}

	if lastErr != "" {
		sb.WriteString(fmt.Sprintf("  [red]%s[-]\n\n", tview.Escape(lastErr)))
	}
	if snap != nil {
		sb.WriteString(fmt.Sprintf("  [dim]Last updated: %s[-]\n",
			snap.FetchedAt.Local().Format("Jan 2 15:04:05")))
	}
	if w.mgr.InFlight() {
		sb.WriteString("  [yellow]Refreshing...[-]\n")
	}
	sb.WriteString("\n  [green]R[-] refresh  [green]Q/Esc[-] quit")
	return sb.String()
}

// formatPct formats a percentage with threshold colors. Over-limit values are
// reported as-is; the pipeline never clamps.
func formatPct(pct float64) string {
	if pct > 100 {
		return fmt.Sprintf("[red]%.0f%% (OVER)[-]", pct)
	}
	color := "green"
	if pct >= 80 {
		color = "red"
	} else if pct >= 60 {
		color = "yellow"
	}
	return fmt.Sprintf("[%s]%.0f%%[-]", color, pct)
}

// progressBar renders a text bar for a 0-100 percentage, clamped to the bar
// geometry only.
func progressBar(pct float64, width int) string {
	frac := pct / 100
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))

	color := "green"
	if frac >= 0.8 {
		color = "red"
	} else if frac >= 0.6 {
		color = "yellow"
	}
	return fmt.Sprintf("[%s][%s%s][-]", color,
		strings.Repeat("█", filled), strings.Repeat("░", width-filled))
}

// sparkline renders rows (newest first) oldest-to-left.
func sparkline(rows []history.SnapshotRow, val func(history.SnapshotRow) float64) string {
	runes := []rune(sparkChars)
	var sb strings.Builder
	for i := len(rows) - 1; i >= 0; i-- {
		frac := val(rows[i]) / 100
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		sb.WriteRune(runes[int(frac*float64(len(runes)-1))])
	}
	return sb.String()
}
