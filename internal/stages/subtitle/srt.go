package subtitle

import (
	"fmt"
	"time"
)

// formatSRTTimestamp renders d as HH:MM:SS,mmm.
func formatSRTTimestamp(d time.Duration) string {
	return formatTimestamp(d, ",")
}

// formatVTTTimestamp renders d as HH:MM:SS.mmm.
func formatVTTTimestamp(d time.Duration) string {
	return formatTimestamp(d, ".")
}

func formatTimestamp(d time.Duration, sep string) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hh := ms / 3_600_000
	ms -= hh * 3_600_000
	mm := ms / 60_000
	ms -= mm * 60_000
	ss := ms / 1000
	ms -= ss * 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hh, mm, ss, sep, ms)
}
