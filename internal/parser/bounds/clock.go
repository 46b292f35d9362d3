package bounds

import "time"

// Clock returns a monotonic timestamp in milliseconds
type Clock interface {
	NowMs() float64
}

// ClockFunc adapts a function to Clock
type ClockFunc func() float64

// NowMs calls f
func (f ClockFunc) NowMs() float64 {
	return f()
}

var processStart = time.Now()

// MonotonicNow is the milliseconds elapsed since the process started
func MonotonicNow() float64 {
	return float64(time.Since(processStart)) / float64(time.Millisecond)
}

// DefaultClock reads MonotonicNow
var DefaultClock Clock = ClockFunc(MonotonicNow)

// FixedClock always returns the same timestamp, convenient in tests
type FixedClock float64

// NowMs returns c
func (c FixedClock) NowMs() float64 {
	return float64(c)
}
