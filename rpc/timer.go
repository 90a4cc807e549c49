package rpc

import "time"

// TimerHandle cancels a scheduled callback. Dropping a pending call's timer
// handle without calling Cancel leaks nothing further — the callback simply
// never observes work to do once the call is removed from the pending table.
type TimerHandle interface {
	Cancel()
}

// TimerSource schedules cb to run after d and returns a handle that cancels
// it. A Session supplies one whose callbacks are posted through its own
// loop, so a call's timeout never races with inbound frame dispatch.
type TimerSource func(d time.Duration, cb func()) TimerHandle

type timerFuncHandle struct {
	t *time.Timer
}

func (h *timerFuncHandle) Cancel() {
	if h.t != nil {
		h.t.Stop()
	}
}

// stdTimerSource schedules callbacks directly with time.AfterFunc — used
// when a caller does not need callbacks serialized through a Session's loop
// (e.g. standalone Connection tests).
func stdTimerSource(d time.Duration, cb func()) TimerHandle {
	return &timerFuncHandle{t: time.AfterFunc(d, cb)}
}
