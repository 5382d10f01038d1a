package pipeline

import "time"

// Clock supplies the timestamps used for latency accounting.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (SystemClock) Since(t time.Time) time.Duration { return time.Since(t) }
