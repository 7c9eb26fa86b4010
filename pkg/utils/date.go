package utils

import "time"

// DateLayout is the calendar-day format used across the digest pipeline.
const DateLayout = "2006-01-02"

// TargetDate returns the most recently completed calendar day in the given
// IANA timezone as a YYYY-MM-DD string, together with the timezone name that
// was actually used. An unknown timezone falls back to UTC. The digest never
// covers the current day, only yesterday.
func TargetDate(tzName string) (string, string) {
	if tzName == "" {
		tzName = "America/New_York"
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		tzName = "UTC"
		loc = time.UTC
	}

	now := time.Now().In(loc)
	return now.AddDate(0, 0, -1).Format(DateLayout), tzName
}

// DateIn returns the current calendar day in the given location, truncated to
// midnight. Used for the per-user one-digest-per-day record.
func DateIn(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}
