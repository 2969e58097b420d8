package schedule

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_Every(t *testing.T) {
	m := NewManual()
	var runs int
	h := m.Every(2*time.Second, func() { runs++ })

	m.Advance(1999 * time.Millisecond)
	assert.Equal(t, 0, runs, "must not run before the first period")

	m.Advance(time.Millisecond)
	assert.Equal(t, 1, runs)

	m.Advance(6 * time.Second)
	assert.Equal(t, 4, runs)

	h.Cancel()
	h.Cancel()
	m.Advance(10 * time.Second)
	assert.Equal(t, 4, runs)
	assert.Equal(t, 0, m.Pending())

	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after Cancel")
	}
}

func TestManual_AfterRunsOnce(t *testing.T) {
	m := NewManual()
	var runs int
	h := m.After(time.Second, func() { runs++ })

	m.Advance(5 * time.Second)
	assert.Equal(t, 1, runs)
	assert.Equal(t, 5*time.Second, m.Now())

	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after one-shot run")
	}
}

func TestManual_CancelBeforeDue(t *testing.T) {
	m := NewManual()
	var runs int
	h := m.After(time.Second, func() { runs++ })
	h.Cancel()
	m.Advance(time.Minute)
	assert.Equal(t, 0, runs)
}

func TestManual_OrderAndSelfCancel(t *testing.T) {
	m := NewManual()
	var order []string

	var tick Handle
	count := 0
	tick = m.Every(200*time.Millisecond, func() {
		count++
		order = append(order, "tick")
		if count == 2 {
			tick.Cancel()
		}
	})
	m.After(300*time.Millisecond, func() { order = append(order, "after") })

	m.Advance(time.Second)
	assert.Equal(t, []string{"tick", "after", "tick"}, order)
}

func TestManual_TaskSchedulesTask(t *testing.T) {
	m := NewManual()
	var fired time.Duration
	m.After(time.Second, func() {
		m.After(time.Second, func() { fired = m.Now() })
	})
	m.Advance(3 * time.Second)
	assert.Equal(t, 2*time.Second, fired)
}

func TestReal_EveryAndCancel(t *testing.T) {
	var runs atomic.Int32
	h := NewReal().Every(5*time.Millisecond, func() { runs.Add(1) })

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)

	h.Cancel()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("Every goroutine did not exit after Cancel")
	}
	stopped := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestReal_After(t *testing.T) {
	fired := make(chan struct{})
	h := NewReal().After(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("After did not fire")
	}
	<-h.Done()

	var runs atomic.Int32
	cancelled := NewReal().After(50*time.Millisecond, func() { runs.Add(1) })
	cancelled.Cancel()
	<-cancelled.Done()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}
