// Package duration formats elapsed-time values for the human-readable
// status surfaces.
package duration

import "strconv"

// Uptime renders a second count as a short human summary, e.g. "1d 1h 1m",
// "3h 2m" or "45m" — the granularity the status command displays, seconds
// are never shown at this resolution.
func Uptime(secs uint64) string {
	days := secs / 86400
	hours := secs % 86400 / 3600
	minutes := secs % 3600 / 60

	out := ""
	if days > 0 {
		out = strconv.FormatUint(days, 10) + "d "
	}
	if days > 0 || hours > 0 {
		out += strconv.FormatUint(hours, 10) + "h "
	}
	return out + strconv.FormatUint(minutes, 10) + "m"
}
