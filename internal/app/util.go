package app

import "fmt"

// shortID truncates a long token ID so log lines and tables stay readable.
func shortID(id string) string {
	if len(id) <= 14 {
		return id
	}
	return id[:6] + "…" + id[len(id)-6:]
}

// fmtFloat renders a float for table output without trailing zero noise.
func fmtFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
