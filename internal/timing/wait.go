package timing

import (
	"runtime"
	"time"
)

// SpinWindow is how long before a deadline SleepUntil stops sleeping and
// starts spinning. It bounds wake latency to roughly the scheduler's jitter.
var SpinWindow = 2 * time.Millisecond

// maxSleepSlice caps each coarse sleep so a stop request is noticed promptly
// even during long waits.
const maxSleepSlice = 10 * time.Millisecond

// SleepUntil blocks until deadline using coarse sleeps followed by a spin.
// It returns false as soon as stop reports true.
func SleepUntil(deadline time.Time, stop func() bool) bool {
	for {
		if stop != nil && stop() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= SpinWindow {
			break
		}
		time.Sleep(min(remaining-SpinWindow, maxSleepSlice))
	}
	for time.Now().Before(deadline) {
		if stop != nil && stop() {
			return false
		}
		runtime.Gosched()
	}
	return true
}

// Sleep is SleepUntil(time.Now().Add(d), stop).
func Sleep(d time.Duration, stop func() bool) bool {
	return SleepUntil(time.Now().Add(d), stop)
}

// Seconds converts a float number of seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
