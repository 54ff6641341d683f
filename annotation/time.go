package annotation

import (
	"fmt"
	"time"
)

// FormatRelative renders a record timestamp for listings: recent
// records read as an age, older ones as a date.
func FormatRelative(ts, now int64) string {
	if ts <= 0 {
		return ""
	}
	d := time.Duration(now-ts) * time.Millisecond
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return time.UnixMilli(ts).UTC().Format("2006-01-02")
	}
}
