// Package events is an in-process publish/subscribe bus used to fan out
// transfer state changes, notifications and upload estimates to whichever
// front-ends are attached (CLI progress, dashboard session, logs).
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/s3transfer/transferctl/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventTransferStateChanged EventType = "transfer_state_changed" // Job moved between idle/transferring/completed/error
	EventTransferPolled       EventType = "transfer_polled"        // One status response received
	EventNotification         EventType = "notification"           // Notification shown
	EventNotificationCleared  EventType = "notification_cleared"   // Notification dismissed or expired
	EventUploadEstimate       EventType = "upload_estimate"        // Synthetic upload percent changed
	EventFilesLoaded          EventType = "files_loaded"           // Bucket listing finished
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// TransferStateEvent is published when a transfer job changes state.
type TransferStateEvent struct {
	BaseEvent
	JobID             string
	SourceBucket      string
	DestinationBucket string
	FileKey           string
	OldState          string
	NewState          string
	ErrorMessage      string
}

// TransferPolledEvent carries one raw status value for an active job.
type TransferPolledEvent struct {
	BaseEvent
	JobID  string
	Status string
	Error  string // transport error, status empty
}

// NotificationEvent mirrors the currently visible notification.
type NotificationEvent struct {
	BaseEvent
	Text     string
	Severity string
}

// UploadEstimateEvent carries the synthetic upload percent (0-100).
type UploadEstimateEvent struct {
	BaseEvent
	Name    string
	Percent int
}

// FilesLoadedEvent reports the outcome of a bucket listing.
type FilesLoadedEvent struct {
	BaseEvent
	Bucket string
	Count  int
	Error  string
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// Publish sends an event to all subscribers. It never blocks: when a
// subscriber's buffer is full the event is dropped for that subscriber.
// A nil bus is a valid no-op.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
}

// PublishTransferState is a convenience method for state change events.
func (eb *EventBus) PublishTransferState(jobID, src, dst, key, oldState, newState, errMsg string) {
	eb.Publish(&TransferStateEvent{
		BaseEvent:         BaseEvent{EventType: EventTransferStateChanged, Time: time.Now()},
		JobID:             jobID,
		SourceBucket:      src,
		DestinationBucket: dst,
		FileKey:           key,
		OldState:          oldState,
		NewState:          newState,
		ErrorMessage:      errMsg,
	})
}

// PublishNotification is a convenience method for notification events.
func (eb *EventBus) PublishNotification(text, severity string) {
	eb.Publish(&NotificationEvent{
		BaseEvent: BaseEvent{EventType: EventNotification, Time: time.Now()},
		Text:      text,
		Severity:  severity,
	})
}

// PublishUploadEstimate is a convenience method for upload estimate events.
func (eb *EventBus) PublishUploadEstimate(name string, percent int) {
	eb.Publish(&UploadEstimateEvent{
		BaseEvent: BaseEvent{EventType: EventUploadEstimate, Time: time.Now()},
		Name:      name,
		Percent:   percent,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			close(subCh)
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
