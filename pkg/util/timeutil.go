package util

import "time"

const dayLayout = "2006-01-02"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// UnixNow returns the current time as unix seconds.
func UnixNow() int64 {
	return NowUTC().Unix()
}

// DateString formats a unix timestamp as its UTC calendar day.
func DateString(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(dayLayout)
}
