package chrono

import "time"

var dhaka *time.Location

func init() {
	var err error
	dhaka, err = time.LoadLocation("Asia/Dhaka")
	if err != nil {
		// Bangladesh has no DST, a fixed zone is exact when tzdata is missing
		dhaka = time.FixedZone("+06", 6*60*60)
	}
}

// Dhaka returns the portal's timezone (UTC+06:00).
func Dhaka() *time.Location {
	return dhaka
}

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	// Now returns the current time in the portal's timezone.
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now().In(dhaka)
}

// FixedTime always returns the same instant.
type FixedTime struct {
	T time.Time
}

func (f FixedTime) Now() time.Time {
	return f.T.In(dhaka)
}
