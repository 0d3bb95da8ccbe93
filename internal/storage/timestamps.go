package storage

import (
	"fmt"
	"time"
)

const sqliteTimeLayout = "2006-01-02 15:04:05"

// parseTimestamp parses a DATETIME value read back from SQLite.
// The driver returns either the stored text or an RFC3339 rendering depending on
// whether the column type is known to it (aggregates lose the declared type).
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
