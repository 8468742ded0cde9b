package app

import "time"

// Scheduler arms one-shot advance signals. Fired callbacks re-validate the
// question token themselves, so the scheduler never needs to cancel
// anything: a late fire for a superseded question is a no-op.
type Scheduler interface {
	Arm(delay time.Duration, fire func())
}

// TimerScheduler is the production scheduler backed by the runtime timer.
type TimerScheduler struct{}

func (TimerScheduler) Arm(delay time.Duration, fire func()) {
	time.AfterFunc(delay, fire)
}
