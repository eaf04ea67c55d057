package util

import "fmt"

// FormatBytesReadable formats a byte count as a human-readable string.
func FormatBytesReadable(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDurationFromSecs formats a duration given in whole seconds as "Xm Ys" / "Xh Ym".
func FormatDurationFromSecs(totalSecs int64) string {
	if totalSecs < 0 {
		totalSecs = 0
	}
	h := totalSecs / 3600
	m := (totalSecs % 3600) / 60
	s := totalSecs % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
