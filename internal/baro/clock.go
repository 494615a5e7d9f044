package baro

import "time"

// Clock is the monotonic time source of the frontend. Now must be safe to
// call from any goroutine.
type Clock interface {
	// Now returns the time elapsed since an arbitrary fixed epoch.
	Now() time.Duration
	// Sleep pauses the calling goroutine.
	Sleep(d time.Duration)
}

type systemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock backed by the runtime monotonic clock,
// with its epoch at the moment of the call.
func NewSystemClock() Clock {
	return systemClock{start: time.Now()}
}

func (c systemClock) Now() time.Duration { return time.Since(c.start) }

func (c systemClock) Sleep(d time.Duration) { time.Sleep(d) }
