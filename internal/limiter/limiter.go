// Package limiter paces the removal loop so a live run on a busy machine
// stays below a CPU share.
package limiter

import (
	"runtime"
	"time"
)

// slice is the work period between pauses
const slice = 10 * time.Millisecond

// CPULimiter pauses the caller so that, over time, it works for at most
// maxPercent of wall-clock time. A zero value does not throttle.
type CPULimiter struct {
	maxPercent float64
	lastPause  time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewCPULimiter returns a limiter for maxPercent. Values outside (0, 100)
// disable throttling.
func NewCPULimiter(maxPercent float64) *CPULimiter {
	return &CPULimiter{
		maxPercent: maxPercent,
		lastPause:  time.Now(),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Enabled reports whether Throttle ever pauses
func (l *CPULimiter) Enabled() bool {
	return l != nil && l.maxPercent > 0 && l.maxPercent < 100
}

// Pause returns how long the limiter rests after each work slice
func (l *CPULimiter) Pause() time.Duration {
	if !l.Enabled() {
		return 0
	}
	return time.Duration(float64(slice) * (100 - l.maxPercent) / l.maxPercent)
}

// Throttle is called between units of work. Once a work slice has elapsed
// since the last pause it sleeps for Pause().
func (l *CPULimiter) Throttle() {
	if !l.Enabled() {
		return
	}
	if l.now().Sub(l.lastPause) > slice {
		l.sleep(l.Pause())
		l.lastPause = l.now()
	}
	runtime.Gosched()
}
