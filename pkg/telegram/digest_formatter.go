package telegram

import (
	"fmt"
	"strings"
)

// DigestRunResult is the per-user outcome of a scheduled digest run.
type DigestRunResult struct {
	Email     string
	Tickers   int
	EmailSent bool
	Error     string
}

// FormatDigestRunReport renders an admin report for one daily digest run.
func FormatDigestRunReport(dateLabel string, results []DigestRunResult) string {
	var b strings.Builder

	sent := 0
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		} else if r.EmailSent {
			sent++
		}
	}

	b.WriteString(fmt.Sprintf("*Daily Digest Run — %s*\n", dateLabel))
	b.WriteString(fmt.Sprintf("Users: %d | Emails sent: %d | Failed: %d\n", len(results), sent, failed))

	for _, r := range results {
		if r.Error == "" {
			continue
		}
		b.WriteString(fmt.Sprintf("\n❌ `%s`: %s", r.Email, r.Error))
	}

	return b.String()
}
