// Package progress renders feedback for long-running operations. The
// backend reports no upload byte progress, so uploads show a synthetic,
// time-based estimate rather than real progress.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/s3transfer/transferctl/internal/constants"
	"github.com/s3transfer/transferctl/internal/events"
	"github.com/s3transfer/transferctl/internal/schedule"
)

// EstimatorOptions configures an Estimator. Zero values use the defaults
// (+10 every 200ms, capped at 90, reset 1s after success).
type EstimatorOptions struct {
	Scheduler  schedule.Scheduler
	Tick       time.Duration
	Step       int
	Ceiling    int
	ResetDelay time.Duration

	// OnChange observes every percent change, in order.
	OnChange func(percent int)

	// Bus and Name publish events.EventUploadEstimate when set.
	Bus  *events.EventBus
	Name string
}

// Estimator is the upload progress estimator.
//
// While a request is outstanding the percent climbs by Step per Tick and
// never exceeds Ceiling. Succeed jumps to 100 and returns to 0 after
// ResetDelay. Fail drops to 0 at once.
type Estimator struct {
	mu      sync.Mutex
	opts    EstimatorOptions
	percent int
	running bool
	gen     uint64
	tick    schedule.Handle
	reset   schedule.Handle
	closed  bool

	deliverMu sync.Mutex
}

// NewEstimator creates an idle estimator at 0%.
func NewEstimator(opts EstimatorOptions) *Estimator {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NewReal()
	}
	if opts.Tick <= 0 {
		opts.Tick = constants.UploadEstimateTick
	}
	if opts.Step <= 0 {
		opts.Step = constants.UploadEstimateStep
	}
	if opts.Ceiling <= 0 || opts.Ceiling >= 100 {
		opts.Ceiling = constants.UploadEstimateCeiling
	}
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = constants.UploadEstimateResetDelay
	}
	return &Estimator{opts: opts}
}

// Start begins a new estimate at 0%, abandoning any previous one.
func (e *Estimator) Start() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	e.gen++
	gen := e.gen
	e.running = true
	e.tick = e.opts.Scheduler.Every(e.opts.Tick, func() { e.advance(gen) })
	e.setLocked(0)
}

// Succeed marks the request as resolved successfully.
func (e *Estimator) Succeed() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	e.gen++
	gen := e.gen
	e.running = false
	e.reset = e.opts.Scheduler.After(e.opts.ResetDelay, func() { e.expire(gen) })
	e.setLocked(100)
}

// Fail marks the request as failed. There is no 100% flash.
func (e *Estimator) Fail() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cancelLocked()
	e.gen++
	e.running = false
	e.setLocked(0)
}

// Percent returns the current estimate in [0,100].
func (e *Estimator) Percent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.percent
}

// Track runs fn while the ticker advances independently, then settles the
// estimate on fn's outcome. It returns fn's error.
func (e *Estimator) Track(ctx context.Context, fn func(ctx context.Context) error) error {
	e.Start()
	err := fn(ctx)
	if err != nil {
		e.Fail()
		return err
	}
	e.Succeed()
	return nil
}

// Close cancels every pending task. The estimator stays at its last value.
func (e *Estimator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.running = false
	e.cancelLocked()
}

func (e *Estimator) advance(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || !e.running {
		e.mu.Unlock()
		return
	}
	next := e.percent + e.opts.Step
	if next > e.opts.Ceiling {
		next = e.opts.Ceiling
	}
	if next == e.percent {
		e.mu.Unlock()
		return
	}
	e.setLocked(next)
}

func (e *Estimator) expire(gen uint64) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.reset = nil
	e.setLocked(0)
}

func (e *Estimator) cancelLocked() {
	if e.tick != nil {
		e.tick.Cancel()
		e.tick = nil
	}
	if e.reset != nil {
		e.reset.Cancel()
		e.reset = nil
	}
}

// setLocked stores p and notifies observers. Called with e.mu held; releases it.
func (e *Estimator) setLocked(p int) {
	changed := e.percent != p
	e.percent = p
	gen := e.gen

	e.deliverMu.Lock()
	e.mu.Unlock()
	defer e.deliverMu.Unlock()

	// Start always reports 0, even when the previous estimate was already 0.
	if !changed && p != 0 {
		return
	}

	// A newer transition may have landed while waiting for deliverMu.
	e.mu.Lock()
	stale := gen != e.gen
	e.mu.Unlock()
	if stale {
		return
	}

	if e.opts.OnChange != nil {
		e.opts.OnChange(p)
	}
	e.opts.Bus.PublishUploadEstimate(e.opts.Name, p)
}
