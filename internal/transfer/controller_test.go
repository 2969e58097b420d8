package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3transfer/transferctl/internal/events"
	"github.com/s3transfer/transferctl/internal/schedule"
)

type statusResult struct {
	status string
	err    error
}

// fakeClient replays scripted status results; once exhausted it keeps
// answering RUNNING.
type fakeClient struct {
	mu          sync.Mutex
	jobID       string
	submitErr   error
	submitCalls int
	statusCalls int
	statuses    []statusResult
	polledIDs   []string

	// optional hooks, called without holding mu
	onSubmit func()
	onStatus func()
}

func (f *fakeClient) SubmitTransfer(ctx context.Context, source, destination, fileKey string) (string, error) {
	f.mu.Lock()
	f.submitCalls++
	hook := f.onSubmit
	id, err := f.jobID, f.submitErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return id, err
}

func (f *fakeClient) TransferStatus(ctx context.Context, jobID string) (string, error) {
	f.mu.Lock()
	f.statusCalls++
	f.polledIDs = append(f.polledIDs, jobID)
	res := statusResult{status: "RUNNING"}
	if len(f.statuses) > 0 {
		res = f.statuses[0]
		f.statuses = f.statuses[1:]
	}
	hook := f.onStatus
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return res.status, res.err
}

func (f *fakeClient) counts() (submits, statuses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls, f.statusCalls
}

func newTestController(client *fakeClient, opts ...func(*Options)) (*Controller, *schedule.Manual) {
	sched := schedule.NewManual()
	o := Options{Client: client, Scheduler: sched, PollInterval: 2 * time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	return NewController(o), sched
}

func TestSubmitPollsUntilCompleted(t *testing.T) {
	client := &fakeClient{
		jobID: "job-1",
		statuses: []statusResult{
			{status: "RUNNING"}, {status: "RUNNING"}, {status: "RUNNING"}, {status: "COMPLETED"},
		},
	}
	c, sched := newTestController(client)
	defer c.Close()

	job, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, StateTransferring, job.State)

	var observed []State
	for i := 0; i < 4; i++ {
		sched.Advance(2 * time.Second)
		observed = append(observed, c.State())
	}
	assert.Equal(t, []State{StateTransferring, StateTransferring, StateTransferring, StateCompleted}, observed)

	_, statuses := client.counts()
	assert.Equal(t, 4, statuses)

	// No further polls after the terminal status.
	sched.Advance(20 * time.Second)
	_, statuses = client.counts()
	assert.Equal(t, 4, statuses)
	assert.Equal(t, 0, sched.Pending())

	final, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "COMPLETED", final.LastStatus)
	assert.False(t, final.FinishedAt.IsZero())
	assert.Equal(t, []string{"job-1", "job-1", "job-1", "job-1"}, client.polledIDs)
}

func TestPollingWaitsOneInterval(t *testing.T) {
	client := &fakeClient{jobID: "job-1", statuses: []statusResult{{status: "COMPLETED"}}}
	c, sched := newTestController(client)
	defer c.Close()

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)

	sched.Advance(2*time.Second - time.Millisecond)
	_, statuses := client.counts()
	assert.Equal(t, 0, statuses)
	assert.Equal(t, StateTransferring, c.State())

	sched.Advance(time.Millisecond)
	assert.Equal(t, StateCompleted, c.State())
}

func TestSubmitBlankFieldsMakeNoRequest(t *testing.T) {
	tests := []struct {
		name        string
		source      string
		destination string
		key         string
		field       string
	}{
		{"empty source", "", "b", "x.txt", FieldSourceBucket},
		{"blank destination", "a", "   ", "x.txt", FieldDestinationBucket},
		{"blank key", "a", "b", "\t", FieldFileKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{jobID: "job-1"}
			c, sched := newTestController(client)
			defer c.Close()

			_, err := c.Submit(context.Background(), tt.source, tt.destination, tt.key)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingField)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			sched.Advance(10 * time.Second)
			submits, statuses := client.counts()
			assert.Zero(t, submits)
			assert.Zero(t, statuses)
			assert.Equal(t, StateIdle, c.State())
		})
	}
}

func TestBackendFailedStatus(t *testing.T) {
	client := &fakeClient{jobID: "job-1", statuses: []statusResult{{status: "RUNNING"}, {status: "FAILED"}}}
	c, sched := newTestController(client)
	defer c.Close()

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)

	sched.Advance(4 * time.Second)
	job, _ := c.Current()
	assert.Equal(t, StateError, job.State)
	assert.Equal(t, ErrTextFailed, job.Err)

	sched.Advance(10 * time.Second)
	_, statuses := client.counts()
	assert.Equal(t, 2, statuses)
}

func TestPollTransportErrorKeepsPolling(t *testing.T) {
	netErr := errors.New("connection refused")
	client := &fakeClient{
		jobID:    "job-1",
		statuses: []statusResult{{err: netErr}, {err: netErr}, {status: "COMPLETED"}},
	}
	c, sched := newTestController(client)
	defer c.Close()

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)

	sched.Advance(4 * time.Second)
	assert.Equal(t, StateTransferring, c.State())

	sched.Advance(2 * time.Second)
	assert.Equal(t, StateCompleted, c.State())
	_, statuses := client.counts()
	assert.Equal(t, 3, statuses)
}

func TestUnknownStatusIsRunning(t *testing.T) {
	client := &fakeClient{jobID: "job-1", statuses: []statusResult{{status: "IN_PROGRESS"}, {status: "PENDING"}, {status: ""}}}
	c, sched := newTestController(client)
	defer c.Close()

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)

	sched.Advance(6 * time.Second)
	job, _ := c.Current()
	assert.Equal(t, StateTransferring, job.State)
	assert.Empty(t, job.Err)
}

func TestSubmitFailure(t *testing.T) {
	backendErr := errors.New("400 Bad Request")
	client := &fakeClient{submitErr: backendErr}
	c, sched := newTestController(client)
	defer c.Close()

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.ErrorIs(t, err, backendErr)

	job, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, StateError, job.State)
	assert.Equal(t, ErrTextStartFailed, job.Err)

	sched.Advance(10 * time.Second)
	_, statuses := client.counts()
	assert.Zero(t, statuses)
}

func TestSubmitRejectedWhileActive(t *testing.T) {
	client := &fakeClient{jobID: "job-1"}
	c, _ := newTestController(client)
	defer c.Close()

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), "c", "d", "y.txt")
	assert.ErrorIs(t, err, ErrJobAlreadyActive)

	submits, _ := client.counts()
	assert.Equal(t, 1, submits)
	job, _ := c.Current()
	assert.Equal(t, "x.txt", job.FileKey)
}

func TestSubmitRejectedWhileRequestInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	client := &fakeClient{jobID: "job-1"}
	client.onSubmit = func() {
		close(entered)
		<-release
	}
	c, _ := newTestController(client)
	defer c.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), "a", "b", "x.txt")
		errCh <- err
	}()

	<-entered
	assert.Equal(t, StateTransferring, c.State())
	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	assert.ErrorIs(t, err, ErrJobAlreadyActive)

	close(release)
	require.NoError(t, <-errCh)
	submits, _ := client.counts()
	assert.Equal(t, 1, submits)
}

func TestConcurrentSubmitsReachNetworkOnce(t *testing.T) {
	client := &fakeClient{jobID: "job-1"}
	c, _ := newTestController(client)
	defer c.Close()

	const n = 20
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Submit(context.Background(), "a", "b", "x.txt")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrJobAlreadyActive):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, rejected)
	submits, _ := client.counts()
	assert.Equal(t, 1, submits)
}

func TestResubmitAfterTerminal(t *testing.T) {
	client := &fakeClient{jobID: "job-1", statuses: []statusResult{{status: "FAILED"}}}
	c, sched := newTestController(client)
	defer c.Close()

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)
	sched.Advance(2 * time.Second)
	require.Equal(t, StateError, c.State())

	client.mu.Lock()
	client.jobID = "job-2"
	client.statuses = []statusResult{{status: "COMPLETED"}}
	client.mu.Unlock()

	job, err := c.Submit(context.Background(), "a", "b", "y.txt")
	require.NoError(t, err)
	assert.Equal(t, "job-2", job.ID)
	assert.Empty(t, job.Err)

	sched.Advance(2 * time.Second)
	assert.Equal(t, StateCompleted, c.State())
	assert.Equal(t, []string{"job-1", "job-2"}, client.polledIDs)
}

func TestCloseStopsPollingWhileTransferring(t *testing.T) {
	client := &fakeClient{jobID: "job-1"}
	c, sched := newTestController(client)

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)
	sched.Advance(2 * time.Second)

	c.Close()
	sched.Advance(20 * time.Second)

	_, statuses := client.counts()
	assert.Equal(t, 1, statuses)
	assert.Equal(t, 0, sched.Pending())

	_, err = c.Submit(context.Background(), "a", "b", "x.txt")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = c.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseDuringPollDiscardsResult(t *testing.T) {
	client := &fakeClient{jobID: "job-1", statuses: []statusResult{{status: "COMPLETED"}}}
	var changes []State
	c, sched := newTestController(client, func(o *Options) {
		o.OnStateChange = func(j Job) { changes = append(changes, j.State) }
	})
	client.onStatus = c.Close

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)
	sched.Advance(2 * time.Second)

	assert.Equal(t, StateTransferring, c.State())
	assert.Equal(t, []State{StateTransferring}, changes)
}

func TestCloseDuringSubmitDiscardsResult(t *testing.T) {
	client := &fakeClient{jobID: "job-1"}
	c, sched := newTestController(client)
	client.onSubmit = c.Close

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	assert.ErrorIs(t, err, ErrClosed)

	sched.Advance(10 * time.Second)
	_, statuses := client.counts()
	assert.Zero(t, statuses)
}

func TestObserverAndBus(t *testing.T) {
	bus := events.NewEventBus(16)
	defer bus.Close()
	stateCh := bus.Subscribe(events.EventTransferStateChanged)
	polledCh := bus.Subscribe(events.EventTransferPolled)

	client := &fakeClient{jobID: "job-1", statuses: []statusResult{{status: "RUNNING"}, {status: "COMPLETED"}}}
	var jobs []Job
	c, sched := newTestController(client, func(o *Options) {
		o.Bus = bus
		o.OnStateChange = func(j Job) { jobs = append(jobs, j) }
	})
	defer c.Close()

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)
	sched.Advance(4 * time.Second)

	require.Len(t, jobs, 2)
	assert.Equal(t, StateTransferring, jobs[0].State)
	assert.Equal(t, StateCompleted, jobs[1].State)
	assert.Equal(t, "job-1", jobs[1].ID)

	first := (<-stateCh).(*events.TransferStateEvent)
	assert.Equal(t, string(StateIdle), first.OldState)
	assert.Equal(t, string(StateTransferring), first.NewState)
	second := (<-stateCh).(*events.TransferStateEvent)
	assert.Equal(t, string(StateTransferring), second.OldState)
	assert.Equal(t, string(StateCompleted), second.NewState)
	assert.Equal(t, "job-1", second.JobID)

	p1 := (<-polledCh).(*events.TransferPolledEvent)
	assert.Equal(t, "RUNNING", p1.Status)
	p2 := (<-polledCh).(*events.TransferPolledEvent)
	assert.Equal(t, "COMPLETED", p2.Status)
}

func TestWaitReturnsTerminalJob(t *testing.T) {
	client := &fakeClient{jobID: "job-1", statuses: []statusResult{{status: "COMPLETED"}}}
	c, sched := newTestController(client)
	defer c.Close()

	_, err := c.Wait(context.Background())
	assert.Error(t, err)

	_, err = c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	job, err := c.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateTransferring, job.State)

	sched.Advance(2 * time.Second)
	job, err = c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, job.State)
}

func TestAttachPollsExistingJob(t *testing.T) {
	client := &fakeClient{statuses: []statusResult{{status: "COMPLETED"}}}
	c, sched := newTestController(client)
	defer c.Close()

	_, err := c.Attach(context.Background(), " ")
	assert.ErrorIs(t, err, ErrMissingField)

	job, err := c.Attach(context.Background(), "job-9")
	require.NoError(t, err)
	assert.Equal(t, "job-9", job.ID)

	sched.Advance(2 * time.Second)
	assert.Equal(t, StateCompleted, c.State())
	submits, _ := client.counts()
	assert.Zero(t, submits)
	assert.Equal(t, []string{"job-9"}, client.polledIDs)
}

func TestRealSchedulerEndToEnd(t *testing.T) {
	client := &fakeClient{jobID: "job-1", statuses: []statusResult{{status: "RUNNING"}, {status: "COMPLETED"}}}
	c := NewController(Options{Client: client, PollInterval: 5 * time.Millisecond})
	defer c.Close()

	_, err := c.Submit(context.Background(), "a", "b", "x.txt")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := c.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, job.State)
	_, statuses := client.counts()
	assert.Equal(t, 2, statuses)
}

func TestJobDuration(t *testing.T) {
	start := time.Now().Add(-3 * time.Second)
	j := Job{SubmittedAt: start, FinishedAt: start.Add(time.Second)}
	assert.Equal(t, time.Second, j.Duration())
	assert.Zero(t, Job{}.Duration())
	assert.True(t, StateError.IsTerminal())
	assert.False(t, StateTransferring.IsTerminal())
}
