package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JohnDimou/claude-usage-bar/internal/usage"
)

// DB stores one row per successful fetch cycle so the watch dashboard and the
// history command can show trends. Failures are never stored; they live only
// in the manager's error slot.
type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	return &DB{sql: conn}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS usage_snapshots (
			id            INTEGER PRIMARY KEY,
			fetch_id      TEXT NOT NULL DEFAULT '',
			ts_ms         INTEGER NOT NULL,
			session_pct   REAL NOT NULL DEFAULT 0,
			weekly_pct    REAL NOT NULL DEFAULT 0,
			sonnet_pct    REAL NOT NULL DEFAULT 0,
			session_reset TEXT NOT NULL DEFAULT '',
			weekly_reset  TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("create usage_snapshots: %w", err)
	}
	if _, err := d.sql.Exec(`CREATE INDEX IF NOT EXISTS idx_usage_snapshots_ts ON usage_snapshots(ts_ms DESC)`); err != nil {
		return fmt.Errorf("index usage_snapshots: %w", err)
	}
	return nil
}

// SnapshotRow is a persisted usage snapshot.
type SnapshotRow struct {
	ID           int64
	FetchID      string
	TsMs         int64
	SessionPct   float64
	WeeklyPct    float64
	SonnetPct    float64
	SessionReset string
	WeeklyReset  string
}

// FromSnapshot converts a pipeline snapshot into a storable row. fetchID is
// the cycle's correlation id.
func FromSnapshot(fetchID string, s *usage.Snapshot) SnapshotRow {
	return SnapshotRow{
		FetchID:      fetchID,
		TsMs:         s.FetchedAt.UnixMilli(),
		SessionPct:   s.SessionPercent,
		WeeklyPct:    s.WeeklyPercent,
		SonnetPct:    s.SonnetPercent,
		SessionReset: s.SessionReset,
		WeeklyReset:  s.WeeklyReset,
	}
}

func (d *DB) InsertSnapshot(row SnapshotRow) error {
	_, err := d.sql.Exec(`
		INSERT INTO usage_snapshots (fetch_id, ts_ms, session_pct, weekly_pct, sonnet_pct, session_reset, weekly_reset)
		VALUES (?,?,?,?,?,?,?)`,
		row.FetchID, row.TsMs, row.SessionPct, row.WeeklyPct, row.SonnetPct,
		row.SessionReset, row.WeeklyReset,
	)
	return err
}

// LatestSnapshot returns the newest row, or nil when the table is empty.
func (d *DB) LatestSnapshot() (*SnapshotRow, error) {
	rows, err := d.RecentSnapshots(1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// RecentSnapshots returns up to n rows, newest first.
func (d *DB) RecentSnapshots(n int) ([]SnapshotRow, error) {
	rows, err := d.sql.Query(`
		SELECT id, fetch_id, ts_ms, session_pct, weekly_pct, sonnet_pct, session_reset, weekly_reset
		FROM usage_snapshots ORDER BY ts_ms DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.ID, &r.FetchID, &r.TsMs, &r.SessionPct, &r.WeeklyPct,
			&r.SonnetPct, &r.SessionReset, &r.WeeklyReset); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneBefore deletes rows older than cutoff and returns how many were removed.
func (d *DB) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := d.sql.Exec(`DELETE FROM usage_snapshots WHERE ts_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
