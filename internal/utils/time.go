package utils

import (
	"time"
)

// UnixTimeToTime converts a Unix timestamp (as Stripe sends them) to UTC time.
func UnixTimeToTime(unixTime int64) time.Time {
	return time.Unix(unixTime, 0).UTC()
}

// MinorToMajor converts a minor-unit amount (cents) to the major unit.
func MinorToMajor(amount int64) float64 {
	return float64(amount) / 100
}

// MajorToMinor converts a major-unit amount to minor units, rounding to the nearest cent.
func MajorToMinor(amount float64) int64 {
	if amount < 0 {
		return int64(amount*100 - 0.5)
	}
	return int64(amount*100 + 0.5)
}
