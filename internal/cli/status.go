package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/JohnDimou/claude-usage-bar/internal/usage"
)

const barWidth = 20

func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func color(pct float64) string {
	switch {
	case pct >= 80:
		return "\033[31m" // red
	case pct >= 60:
		return "\033[33m" // yellow
	default:
		return "\033[32m" // green
	}
}

const reset = "\033[0m"

// bar renders a fixed-width usage bar; out-of-range values are clamped for
// display geometry only.
func bar(pct float64) string {
	filled := int(math.Round(pct / 100 * barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func printColor(snap *usage.Snapshot) {
	fmt.Printf("usage-bar  session %s%s%s %3.0f%%  %s\n",
		color(snap.SessionPercent), bar(snap.SessionPercent), reset,
		snap.SessionPercent, resetSuffix(snap.SessionReset))
	fmt.Printf("           weekly  %s%s%s %3.0f%%  %s\n",
		color(snap.WeeklyPercent), bar(snap.WeeklyPercent), reset,
		snap.WeeklyPercent, resetSuffix(snap.WeeklyReset))
	fmt.Printf("           sonnet  %s%s%s %3.0f%%\n",
		color(snap.SonnetPercent), bar(snap.SonnetPercent), reset, snap.SonnetPercent)
}

func printPlain(snap *usage.Snapshot) {
	fmt.Printf("session: %.0f%% %s  weekly: %.0f%% %s  sonnet: %.0f%%\n",
		snap.SessionPercent, parenthesize(snap.SessionReset),
		snap.WeeklyPercent, parenthesize(snap.WeeklyReset),
		snap.SonnetPercent)
}

func printJSON(snap *usage.Snapshot) {
	data, _ := json.MarshalIndent(snap, "", "  ")
	fmt.Println(string(data))
}

func resetSuffix(label string) string {
	if label == "" {
		return ""
	}
	return "resets " + label
}

func parenthesize(label string) string {
	if label == "" {
		return ""
	}
	return "(resets " + label + ")"
}

// Status runs one fetch cycle and prints the result. Returns the process exit
// code.
func Status(f *usage.Fetcher, jsonMode, plainMode bool) int {
	snap, err := f.FetchAndParse(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "claude-usage-bar: %v\n", err)
		return 1
	}
	switch {
	case jsonMode:
		printJSON(snap)
	case plainMode || !isTTY():
		printPlain(snap)
	default:
		printColor(snap)
	}
	return 0
}
