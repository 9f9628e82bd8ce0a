package calc

import (
	"fmt"
	"math"
	"time"
)

// Progress calculates the percentage for a given pair of byte counts.
func Progress(downloaded, total int64) int {
	if total > 0 {
		return int(math.Round(float64(downloaded) / float64(total) * 100))
	}
	return 0
}

// ETA calculates the estimated time of arrival.
func ETA(downloaded, total int64, started time.Time) time.Duration {
	if total > 0 && downloaded > 0 {
		downloaded := float64(downloaded)
		total := float64(total)
		elapsed := time.Since(started)
		eta := time.Duration(float64(elapsed) * (total/downloaded - 1))
		return eta
	}
	return 0
}

// Speed returns the average transfer rate in bytes per second since started.
func Speed(downloaded int64, started time.Time) float64 {
	elapsed := time.Since(started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(downloaded) / elapsed
}

// HumanBytes formats a byte count with a binary-prefix unit.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// HumanSpeed formats a bytes-per-second rate.
func HumanSpeed(bps float64) string {
	if bps <= 0 {
		return "0 B/s"
	}
	return HumanBytes(int64(bps)) + "/s"
}
