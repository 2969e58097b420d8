// Package schedule runs cancellable delayed and periodic tasks. Components
// that poll, tick or auto-dismiss take a Scheduler so tests can drive time
// with Manual instead of sleeping.
package schedule

import (
	"sync"
	"time"
)

// Handle controls one scheduled task.
type Handle interface {
	// Cancel stops future runs. It is idempotent and safe to call from the
	// task itself. A run already in progress is not interrupted.
	Cancel()
	// Done is closed once the task will never run again.
	Done() <-chan struct{}
}

// Scheduler creates scheduled tasks.
type Scheduler interface {
	// Every runs fn every d until cancelled. The first run is after d.
	Every(d time.Duration, fn func()) Handle
	// After runs fn once after d unless cancelled first.
	After(d time.Duration, fn func()) Handle
}

const minPeriod = time.Millisecond

// Real schedules on wall-clock time with one goroutine per task.
type Real struct{}

// NewReal returns the wall-clock scheduler.
func NewReal() Real {
	return Real{}
}

type realHandle struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newRealHandle() *realHandle {
	return &realHandle{stop: make(chan struct{}), done: make(chan struct{})}
}

func (h *realHandle) Cancel() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *realHandle) Done() <-chan struct{} {
	return h.done
}

func (Real) Every(d time.Duration, fn func()) Handle {
	if d < minPeriod {
		d = minPeriod
	}
	h := newRealHandle()
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				// A tick and a cancel can be ready together; cancel wins.
				select {
				case <-h.stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	return h
}

func (Real) After(d time.Duration, fn func()) Handle {
	h := newRealHandle()
	go func() {
		defer close(h.done)
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-h.stop:
		case <-timer.C:
			select {
			case <-h.stop:
				return
			default:
			}
			fn()
		}
	}()
	return h
}
