package tools

import (
	"fmt"
	"time"
)

// formatTimestamp renders an ISO 8601 timestamp as "2006-01-02 15:04:05 UTC".
// Unparseable input is passed through unchanged; empty input yields nil so
// the field serializes as JSON null.
func formatTimestamp(value string) any {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.UTC().Format("2006-01-02 15:04:05") + " UTC"
}

// formatDuration renders the elapsed time between two ISO 8601 timestamps
// as "1h 2m 3s", omitting leading zero units. Missing, unparseable, or
// out-of-order timestamps yield nil.
func formatDuration(start, finish string) any {
	if start == "" || finish == "" {
		return nil
	}
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return nil
	}
	f, err := time.Parse(time.RFC3339, finish)
	if err != nil {
		return nil
	}
	total := int(f.Sub(s).Seconds())
	if total < 0 {
		return nil
	}
	hours := total / 3600
	minutes := total % 3600 / 60
	seconds := total % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
