package transfer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/s3transfer/transferctl/internal/constants"
	"github.com/s3transfer/transferctl/internal/events"
	"github.com/s3transfer/transferctl/internal/logging"
	"github.com/s3transfer/transferctl/internal/schedule"
)

// Client is the part of the backend API the controller needs.
type Client interface {
	SubmitTransfer(ctx context.Context, source, destination, fileKey string) (string, error)
	TransferStatus(ctx context.Context, jobID string) (string, error)
}

// Options configures a Controller.
type Options struct {
	Client       Client
	Scheduler    schedule.Scheduler // defaults to schedule.Real
	PollInterval time.Duration      // defaults to 2s
	Logger       *logging.Logger
	Bus          *events.EventBus

	// OnStateChange is called after every state transition, outside the
	// controller lock and never concurrently with itself. It must not call
	// back into the Controller.
	OnStateChange func(Job)
}

// Controller owns at most one job. While that job is transferring, further
// submissions are rejected; once it is terminal a new submission replaces it.
type Controller struct {
	client   Client
	sched    schedule.Scheduler
	interval time.Duration
	logger   *logging.Logger
	bus      *events.EventBus
	onChange func(Job)

	mu      sync.Mutex
	job     Job
	hasJob  bool
	gen     uint64
	pollCtx context.Context
	poll    schedule.Handle
	done    chan struct{}
	closed  bool

	deliverMu sync.Mutex
}

// NewController creates an idle controller.
func NewController(opts Options) *Controller {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NewReal()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.TransferPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Controller{
		client:   opts.Client,
		sched:    opts.Scheduler,
		interval: opts.PollInterval,
		logger:   opts.Logger.Component("transfer"),
		bus:      opts.Bus,
		onChange: opts.OnStateChange,
		job:      Job{State: StateIdle},
	}
}

func validate(source, destination, fileKey string) error {
	switch {
	case strings.TrimSpace(source) == "":
		return &ValidationError{Field: FieldSourceBucket}
	case strings.TrimSpace(destination) == "":
		return &ValidationError{Field: FieldDestinationBucket}
	case strings.TrimSpace(fileKey) == "":
		return &ValidationError{Field: FieldFileKey}
	}
	return nil
}

// Submit starts a transfer of fileKey from source to destination. The job is
// marked transferring before the request is sent, so concurrent calls cannot
// both reach the backend. On success polling starts and the returned job
// carries the backend job id.
func (c *Controller) Submit(ctx context.Context, source, destination, fileKey string) (Job, error) {
	if err := validate(source, destination, fileKey); err != nil {
		return Job{}, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Job{}, ErrClosed
	}
	if c.job.State == StateTransferring {
		c.mu.Unlock()
		return Job{}, ErrJobAlreadyActive
	}

	gen := c.beginLocked(Job{
		SourceBucket:      source,
		DestinationBucket: destination,
		FileKey:           fileKey,
		State:             StateTransferring,
		SubmittedAt:       time.Now(),
	}, ctx)
	c.transitionLocked(StateIdle)

	c.logger.Info().
		Str("source", source).
		Str("destination", destination).
		Str("key", fileKey).
		Msg("submitting transfer")

	id, err := c.client.SubmitTransfer(ctx, source, destination, fileKey)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return Job{}, ErrClosed
	}

	if err != nil {
		c.logger.Error().Err(err).Msg("transfer submission failed")
		c.job.Err = ErrTextStartFailed
		c.finishLocked(StateError)
		return Job{}, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	c.job.ID = strings.TrimSpace(id)
	c.startPollingLocked(gen)
	job := c.job
	c.mu.Unlock()

	c.logger.Info().Str("job_id", job.ID).Msg("transfer submitted")
	return job, nil
}

// Attach tracks a job that was submitted earlier, for example by another
// invocation. It polls exactly like a job started with Submit.
func (c *Controller) Attach(ctx context.Context, jobID string) (Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return Job{}, &ValidationError{Field: "job id"}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Job{}, ErrClosed
	}
	if c.job.State == StateTransferring {
		c.mu.Unlock()
		return Job{}, ErrJobAlreadyActive
	}

	gen := c.beginLocked(Job{
		ID:          strings.TrimSpace(jobID),
		State:       StateTransferring,
		SubmittedAt: time.Now(),
	}, ctx)
	c.startPollingLocked(gen)
	job := c.job
	c.transitionLocked(StateIdle)
	return job, nil
}

// beginLocked installs job as the current one and returns its generation.
func (c *Controller) beginLocked(job Job, ctx context.Context) uint64 {
	if c.poll != nil {
		c.poll.Cancel()
		c.poll = nil
	}
	c.gen++
	c.job = job
	c.hasJob = true
	c.done = make(chan struct{})
	// Polls outlive the submitting call but keep its values.
	c.pollCtx = context.WithoutCancel(ctx)
	return c.gen
}

func (c *Controller) startPollingLocked(gen uint64) {
	c.poll = c.sched.Every(c.interval, func() { c.pollOnce(gen) })
}

// pollOnce is the scheduled status check for generation gen.
func (c *Controller) pollOnce(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.job.State != StateTransferring {
		c.mu.Unlock()
		return
	}
	jobID := c.job.ID
	ctx := c.pollCtx
	c.mu.Unlock()

	status, err := c.client.TransferStatus(ctx, jobID)
	status = strings.TrimSpace(status)

	polled := &events.TransferPolledEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventTransferPolled, Time: time.Now()},
		JobID:     jobID,
		Status:    status,
	}
	if err != nil {
		polled.Error = err.Error()
	}
	c.bus.Publish(polled)

	c.mu.Lock()
	if c.closed || gen != c.gen || c.job.State != StateTransferring {
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.mu.Unlock()
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("status poll failed, will retry")
		return
	}

	c.job.LastStatus = status
	switch status {
	case constants.TransferStatusCompleted:
		c.logger.Info().Str("job_id", jobID).Msg("transfer completed")
		c.finishLocked(StateCompleted)
	case constants.TransferStatusFailed:
		c.logger.Warn().Str("job_id", jobID).Msg("transfer failed")
		c.job.Err = ErrTextFailed
		c.finishLocked(StateError)
	default:
		c.mu.Unlock()
		c.logger.Debug().Str("job_id", jobID).Str("status", status).Msg("transfer still running")
	}
}

// finishLocked moves the job to a terminal state, stops polling and
// releases c.mu.
func (c *Controller) finishLocked(state State) {
	if c.poll != nil {
		c.poll.Cancel()
		c.poll = nil
	}
	old := c.job.State
	c.job.State = state
	c.job.FinishedAt = time.Now()
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.transitionLocked(old)
}

// transitionLocked delivers the current job to observers and releases c.mu.
func (c *Controller) transitionLocked(old State) {
	job := c.job

	c.deliverMu.Lock()
	c.mu.Unlock()
	defer c.deliverMu.Unlock()

	c.bus.PublishTransferState(job.ID, job.SourceBucket, job.DestinationBucket, job.FileKey,
		string(old), string(job.State), job.Err)
	if c.onChange != nil {
		c.onChange(job)
	}
}

// Wait blocks until the current job reaches a terminal state, ctx is done or
// the controller is closed.
func (c *Controller) Wait(ctx context.Context) (Job, error) {
	c.mu.Lock()
	if !c.hasJob {
		c.mu.Unlock()
		return Job{}, fmt.Errorf("no transfer submitted")
	}
	done := c.done
	job := c.job
	c.mu.Unlock()

	if done == nil {
		return job, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return c.snapshot(), ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed && !c.job.State.IsTerminal() {
		return c.job, ErrClosed
	}
	return c.job, nil
}

func (c *Controller) snapshot() Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Current returns the latest job, if one was submitted.
func (c *Controller) Current() (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job, c.hasJob
}

// State returns the current job state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job.State
}

// Close stops polling regardless of the job state. Results of requests still
// in flight are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.poll != nil {
		c.poll.Cancel()
		c.poll = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
}
