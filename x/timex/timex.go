package timex

import "time"

// Timer is the subset of *time.Timer the drivers rely on.
type Timer interface {
	Stop() bool
}

// Clock supplies time and one-shot callbacks. Drivers take a Clock so that
// debounce and settle logic can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	Sleep(d time.Duration)
}

// System is the wall clock.
type System struct{}

func (System) Now() time.Time                            { return time.Now() }
func (System) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
func (System) Sleep(d time.Duration)                     { time.Sleep(d) }

// Or returns c, or System when c is nil.
func Or(c Clock) Clock {
	if c == nil {
		return System{}
	}
	return c
}
