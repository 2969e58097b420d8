// Package notify serialises user feedback from concurrent operations into a
// single visible notification that auto-dismisses after a fixed duration.
// Rendering is delegated to sinks.
package notify

import (
	"sync"
	"time"

	"github.com/s3transfer/transferctl/internal/constants"
	"github.com/s3transfer/transferctl/internal/events"
	"github.com/s3transfer/transferctl/internal/schedule"
)

// Severity of a notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is one notification. Text and Severity always belong together.
type Message struct {
	Text      string
	Severity  Severity
	Visible   bool
	ExpiresAt time.Time
}

// Sink renders notifications. Show and Hide are called in order, one at a
// time, outside the queue's state lock. A sink must not call back into
// the Queue.
type Sink interface {
	Show(Message)
	Hide()
}

// Options configures a Queue.
type Options struct {
	Scheduler schedule.Scheduler // defaults to schedule.Real
	Duration  time.Duration      // defaults to 4s
	Sinks     []Sink
	Bus       *events.EventBus // optional
}

// Queue holds at most one visible message. A newer message pre-empts the
// current one and restarts the auto-dismiss timer.
type Queue struct {
	mu       sync.Mutex
	sched    schedule.Scheduler
	duration time.Duration
	bus      *events.EventBus

	current Message
	gen     uint64
	dismiss schedule.Handle
	closed  bool

	deliverMu sync.Mutex
	sinks     []Sink
}

// NewQueue creates a hidden queue.
func NewQueue(opts Options) *Queue {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NewReal()
	}
	if opts.Duration <= 0 {
		opts.Duration = constants.NotificationDisplayDuration
	}
	return &Queue{
		sched:    opts.Scheduler,
		duration: opts.Duration,
		bus:      opts.Bus,
		sinks:    opts.Sinks,
	}
}

// Notify shows text with the given severity, replacing whatever is visible.
func (q *Queue) Notify(text string, severity Severity) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}

	q.gen++
	gen := q.gen
	if q.dismiss != nil {
		q.dismiss.Cancel()
	}
	q.current = Message{
		Text:      text,
		Severity:  severity,
		Visible:   true,
		ExpiresAt: time.Now().Add(q.duration),
	}
	q.dismiss = q.sched.After(q.duration, func() { q.expire(gen) })
	msg := q.current

	q.deliverMu.Lock()
	q.mu.Unlock()
	defer q.deliverMu.Unlock()

	for _, s := range q.sinks {
		s.Show(msg)
	}
	q.bus.PublishNotification(msg.Text, msg.Severity.String())
}

// Dismiss hides the visible message, if any.
func (q *Queue) Dismiss() {
	q.mu.Lock()
	if q.dismiss != nil {
		q.dismiss.Cancel()
		q.dismiss = nil
	}
	q.hideLocked()
}

// expire is the auto-dismiss task. A task left over from a pre-empted
// message sees a newer generation and does nothing.
func (q *Queue) expire(gen uint64) {
	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return
	}
	q.dismiss = nil
	q.hideLocked()
}

// hideLocked must be called with q.mu held; it releases it.
func (q *Queue) hideLocked() {
	if !q.current.Visible || q.closed {
		q.mu.Unlock()
		return
	}
	q.current = Message{}

	q.deliverMu.Lock()
	q.mu.Unlock()
	defer q.deliverMu.Unlock()

	for _, s := range q.sinks {
		s.Hide()
	}
	q.bus.Publish(&events.NotificationEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventNotificationCleared, Time: time.Now()},
	})
}

// Current returns the visible message.
func (q *Queue) Current() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current, q.current.Visible
}

// Close cancels the pending auto-dismiss. Later calls to Notify are ignored.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	if q.dismiss != nil {
		q.dismiss.Cancel()
		q.dismiss = nil
	}
}
