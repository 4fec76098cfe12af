package history_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/JohnDimou/claude-usage-bar/internal/history"
	"github.com/JohnDimou/claude-usage-bar/internal/usage"
)

func openTestDB(t *testing.T) *history.DB {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertAndLatest(t *testing.T) {
	store := openTestDB(t)

	snap := &usage.Snapshot{
		SessionPercent: 25,
		WeeklyPercent:  22,
		SessionReset:   "5pm",
		WeeklyReset:    "Jan 16",
		FetchedAt:      time.Now(),
	}
	if err := store.InsertSnapshot(history.FromSnapshot("abc123", snap)); err != nil {
		t.Fatal(err)
	}

	latest, err := store.LatestSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil {
		t.Fatal("expected a row")
	}
	if latest.SessionPct != 25 || latest.WeeklyPct != 22 {
		t.Errorf("got %v/%v", latest.SessionPct, latest.WeeklyPct)
	}
	if latest.FetchID != "abc123" {
		t.Errorf("fetch id: got %q", latest.FetchID)
	}
	if latest.SessionReset != "5pm" || latest.WeeklyReset != "Jan 16" {
		t.Errorf("labels: got %q/%q", latest.SessionReset, latest.WeeklyReset)
	}
}

func TestLatestEmpty(t *testing.T) {
	store := openTestDB(t)
	latest, err := store.LatestSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if latest != nil {
		t.Errorf("expected nil on empty table, got %+v", latest)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	store := openTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		row := history.SnapshotRow{
			TsMs:       base.Add(time.Duration(i) * time.Minute).UnixMilli(),
			SessionPct: float64(i * 10),
		}
		if err := store.InsertSnapshot(row); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := store.RecentSnapshots(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows want 3", len(rows))
	}
	if rows[0].SessionPct != 40 || rows[2].SessionPct != 20 {
		t.Errorf("wrong order: %v, %v, %v", rows[0].SessionPct, rows[1].SessionPct, rows[2].SessionPct)
	}
}

func TestPruneBefore(t *testing.T) {
	store := openTestDB(t)

	old := history.SnapshotRow{TsMs: time.Now().Add(-48 * time.Hour).UnixMilli()}
	recent := history.SnapshotRow{TsMs: time.Now().UnixMilli(), SessionPct: 50}
	store.InsertSnapshot(old)
	store.InsertSnapshot(recent)

	n, err := store.PruneBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows want 1", n)
	}
	rows, _ := store.RecentSnapshots(10)
	if len(rows) != 1 || rows[0].SessionPct != 50 {
		t.Errorf("wrong survivor: %+v", rows)
	}
}
