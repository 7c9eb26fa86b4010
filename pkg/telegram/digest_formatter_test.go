package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDigestRunReport(t *testing.T) {
	results := []DigestRunResult{
		{Email: "a@example.com", Tickers: 3, EmailSent: true},
		{Email: "b@example.com", Tickers: 1, EmailSent: false},
		{Email: "c@example.com", Error: "agent unreachable"},
	}

	report := FormatDigestRunReport("2026/08/28", results)

	assert.Contains(t, report, "2026/08/28")
	assert.Contains(t, report, "Users: 3 | Emails sent: 1 | Failed: 1")
	assert.Contains(t, report, "`c@example.com`: agent unreachable")
	assert.NotContains(t, report, "a@example.com")
}

func TestFormatDigestRunReport_EmptyRun(t *testing.T) {
	report := FormatDigestRunReport("2026/08/28", nil)
	assert.Contains(t, report, "Users: 0 | Emails sent: 0 | Failed: 0")
}
