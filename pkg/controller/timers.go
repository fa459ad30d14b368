package controller

import "time"

// Stopper cancels a scheduled function. Stop reports whether the call
// prevented the function from running.
type Stopper interface {
	Stop() bool
}

// Timers schedules f to run once after d on its own goroutine.
type Timers interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

// RealTimers is backed by time.AfterFunc.
type RealTimers struct{}

func (RealTimers) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}
