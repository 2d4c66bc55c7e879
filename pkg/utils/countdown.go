package utils

import (
	"fmt"
	"time"
)

// ExpiredLabel is rendered once a deadline has passed.
const ExpiredLabel = "Expired"

// FormatMinutesSeconds renders a remaining duration as "m:ss". Minutes are
// not capped, so 75 minutes renders as "75:00".
func FormatMinutesSeconds(d time.Duration) string {
	if d <= 0 {
		return ExpiredLabel
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatCountdown renders a long countdown: "3d 4h 5m" when a day or more
// remains, otherwise "4h 5m 6s". It returns "" once the target has passed.
func FormatCountdown(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	days := int64(d / (24 * time.Hour))
	hours := int64(d%(24*time.Hour)) / int64(time.Hour)
	mins := int64(d%time.Hour) / int64(time.Minute)
	secs := int64(d%time.Minute) / int64(time.Second)
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
}
