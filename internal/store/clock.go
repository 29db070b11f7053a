package store

import "time"

// TimeLayout is the wire format for every timestamp the service reads
// or writes, both inside payloads and on rendered records.
const TimeLayout = "2006-01-02 15:04:05"

// clockOffset shifts stored times ahead of UTC. The deployment's
// consumers expect UTC+8 wall-clock values, so the offset is applied
// once, at write time, and never again when rendering.
const clockOffset = 8 * time.Hour

// Now returns the current time in the store's fixed-offset clock.
func Now() time.Time {
	return time.Now().UTC().Add(clockOffset)
}

// FormatTime renders a stored timestamp in the wire format.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
