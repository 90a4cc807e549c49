package rpc

import "time"

// loop is a minimal single-goroutine task queue. A Session owns exactly one
// loop; every mutation of its Connection's state — inbound frame dispatch,
// timer expiry, and close-triggered cleanup — is posted through it, so
// those never run concurrently with each other, and a task queued just
// before Stop still runs to completion before the loop actually exits.
type loop struct {
	tasks chan func()
	done  chan struct{}
}

func newLoop() *loop {
	l := &loop{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	for {
		select {
		case f := <-l.tasks:
			f()
		case <-l.done:
			// Drain whatever was already queued before this loop's
			// creator asked it to stop, so a deferred-destruction task
			// queued just before Stop still runs.
			for {
				select {
				case f := <-l.tasks:
					f()
				default:
					return
				}
			}
		}
	}
}

// Post enqueues f to run on the loop goroutine, in submission order.
func (l *loop) Post(f func()) {
	select {
	case l.tasks <- f:
	case <-l.done:
	}
}

// timerSource returns a TimerSource whose callbacks are always dispatched
// through Post, so they never race with inbound-frame handling.
func (l *loop) timerSource() TimerSource {
	return func(d time.Duration, cb func()) TimerHandle {
		t := time.AfterFunc(d, func() { l.Post(cb) })
		return &timerFuncHandle{t: t}
	}
}

// Stop signals the loop to drain its queue once more and exit. Safe to
// call more than once.
func (l *loop) Stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}
