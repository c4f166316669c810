package core

import (
	"time"
)

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// String renders the timestamp in RFC3339 (UTC)
func (t Timestamp) String() string {
	return t.Time().UTC().Format(time.RFC3339)
}

// Clock supplies the current time. Stages take a Clock so provenance
// stamps are reproducible under test.
type Clock func() Timestamp

// SystemClock reads the wall clock
func SystemClock() Timestamp {
	return Timestamp(time.Now())
}

// FixedClock always returns t
func FixedClock(t time.Time) Clock {
	return func() Timestamp { return Timestamp(t) }
}
