package usage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// parseDiagnosticLimit bounds how much of the offending text a ParseFailure
// message carries.
const parseDiagnosticLimit = 100

// Parse decodes the helper script's captured output into a Snapshot.
//
// Blank input yields an EmptyOutput failure before any decode attempt. Input
// that does not decode as the documented record shape yields a ParseFailure
// whose message carries a truncated excerpt of the text. A decoded record
// whose error field is non-empty yields a ScriptError carrying that message
// verbatim and never a snapshot, regardless of any other fields present.
//
// Percentages are passed through without range validation; the helper script
// owns their meaning. FetchedAt is stamped at mapping completion.
func Parse(text string) (*Snapshot, error) {
	if strings.TrimSpace(text) == "" {
		return nil, newFailure(KindEmptyOutput, "usage script produced no output")
	}

	var rec RawRecord
	if err := json.Unmarshal([]byte(text), &rec); err != nil {
		return nil, newFailure(KindParseFailure,
			fmt.Sprintf("could not parse usage output: %s", truncate(text, parseDiagnosticLimit)))
	}

	if rec.Error != "" {
		return nil, newFailure(KindScriptError, rec.Error)
	}

	return &Snapshot{
		SessionPercent: float64(rec.SessionPercent),
		WeeklyPercent:  float64(rec.WeeklyPercent),
		SonnetPercent:  float64(rec.SonnetPercent),
		SessionReset:   rec.SessionReset,
		WeeklyReset:    rec.WeeklyReset,
		FetchedAt:      time.Now(),
		Raw:            rec.Raw,
	}, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
