package usage

import "time"

// RawRecord is the decode target for the helper script's JSON output. Every
// field is optional: the script may emit any subset, or an error instead of
// data. Absent fields decode to zero values, which are exactly the documented
// defaults (0 for percentages, "" for labels).
type RawRecord struct {
	SessionPercent int    `json:"session_percent"`
	SessionReset   string `json:"session_reset"`
	WeeklyPercent  int    `json:"weekly_percent"`
	WeeklyReset    string `json:"weekly_reset"`
	SonnetPercent  int    `json:"sonnet_percent"`
	Raw            string `json:"raw"`
	Error          string `json:"error"`
}

// Snapshot is the normalized usage record handed to presentation layers.
// It is immutable once constructed; a new fetch cycle produces a fresh
// Snapshot rather than mutating the previous one.
type Snapshot struct {
	SessionPercent float64   `json:"session_percent"`
	WeeklyPercent  float64   `json:"weekly_percent"`
	SonnetPercent  float64   `json:"sonnet_percent"`
	SessionReset   string    `json:"session_reset"`
	WeeklyReset    string    `json:"weekly_reset"`
	FetchedAt      time.Time `json:"fetched_at"`
	Raw            string    `json:"raw,omitempty"`
}
