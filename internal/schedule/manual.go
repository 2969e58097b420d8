package schedule

import (
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by Advance. Tasks run
// synchronously on the goroutine calling Advance, in due-time order, ties
// broken by creation order. Tasks may schedule or cancel other tasks.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks []*manualTask
}

// NewManual returns a Manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

type manualTask struct {
	m         *Manual
	seq       uint64
	at        time.Duration
	period    time.Duration // zero for one-shot
	fn        func()
	cancelled bool
	done      chan struct{}
	doneOnce  sync.Once
}

func (t *manualTask) finish() {
	t.doneOnce.Do(func() { close(t.done) })
}

func (t *manualTask) Cancel() {
	t.m.mu.Lock()
	t.cancelled = true
	t.m.removeLocked(t)
	t.m.mu.Unlock()
	t.finish()
}

func (t *manualTask) Done() <-chan struct{} {
	return t.done
}

func (m *Manual) add(d, period time.Duration, fn func()) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{
		m:      m,
		seq:    m.seq,
		at:     m.now + d,
		period: period,
		fn:     fn,
		done:   make(chan struct{}),
	}
	m.tasks = append(m.tasks, t)
	return t
}

func (m *Manual) Every(d time.Duration, fn func()) Handle {
	if d < minPeriod {
		d = minPeriod
	}
	return m.add(d, d, fn)
}

func (m *Manual) After(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	return m.add(d, 0, fn)
}

// Advance moves virtual time forward by d, running every task that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.at
		if next.period > 0 {
			next.at += next.period
		} else {
			m.removeLocked(next)
		}
		m.mu.Unlock()

		next.fn()
		if next.period == 0 {
			next.finish()
		}
	}
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of tasks that may still run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *Manual) nextDueLocked(target time.Duration) *manualTask {
	var next *manualTask
	for _, t := range m.tasks {
		if t.cancelled || t.at > target {
			continue
		}
		if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (m *Manual) removeLocked(t *manualTask) {
	for i, c := range m.tasks {
		if c == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}
