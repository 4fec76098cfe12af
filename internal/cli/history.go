package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/JohnDimou/claude-usage-bar/internal/history"
)

// History prints the most recent stored snapshots, newest first. Returns the
// process exit code.
func History(store *history.DB, n int) int {
	rows, err := store.RecentSnapshots(n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "claude-usage-bar: %v\n", err)
		return 1
	}
	if len(rows) == 0 {
		fmt.Println("no snapshots recorded yet")
		return 0
	}
	for _, r := range rows {
		fetched := time.UnixMilli(r.TsMs)
		fmt.Printf("%-18s session %3.0f%%  weekly %3.0f%%  sonnet %3.0f%%",
			humanize.Time(fetched), r.SessionPct, r.WeeklyPct, r.SonnetPct)
		if r.SessionReset != "" {
			fmt.Printf("  resets %s", r.SessionReset)
		}
		fmt.Println()
	}
	return 0
}
