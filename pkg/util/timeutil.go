package util

import "time"

// NowUTC is the clock used for generated ids and job timestamps.
func NowUTC() time.Time {
	return time.Now().UTC()
}
