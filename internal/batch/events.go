package batch

import (
	"sync"
	"time"

	"github.com/dgnsrekt/voxcast/internal/artifact"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventStart        EventType = "processing:start"
	EventItemStart    EventType = "item:start"
	EventItemComplete EventType = "item:complete"
	EventItemError    EventType = "item:error"
	EventPaused       EventType = "processing:paused"
	EventResumed      EventType = "processing:resumed"
	EventCancelled    EventType = "processing:cancelled"
	EventComplete     EventType = "processing:complete"
	EventError        EventType = "processing:error"
)

// Event is a sequenced lifecycle notification. Stats is a snapshot taken
// when the event was emitted.
type Event struct {
	Seq   int64     `json:"seq"`
	Time  time.Time `json:"time"`
	JobID string    `json:"jobId"`
	Type  EventType `json:"type"`
	Stats Stats     `json:"stats"`

	// Set on item events.
	Item *ItemEvent `json:"item,omitempty"`

	// Set on processing:start when the run is a retry pass.
	Retry bool `json:"retry,omitempty"`

	// Set on processing:complete.
	Completion *Completion `json:"completion,omitempty"`

	// Set on processing:error.
	Err error `json:"-"`
}

// ItemEvent describes the work item an item event refers to.
type ItemEvent struct {
	ID             string        `json:"id"`
	Speaker        string        `json:"speaker"`
	Position       int           `json:"position"` // 0-based index in the job queue
	Attempts       int           `json:"attempts"`
	Filename       string        `json:"filename,omitempty"`
	AudioSize      int           `json:"audioSize,omitempty"`
	ProcessingTime time.Duration `json:"processingTime,omitempty"`
	Error          string        `json:"error,omitempty"`
	WillRetry      bool          `json:"willRetry,omitempty"`
}

// Completion is the payload of processing:complete.
type Completion struct {
	ProcessingTime time.Duration     `json:"processingTime"`
	EpisodeDir     string            `json:"episodeDir"`
	MetadataPath   string            `json:"metadataPath"`
	Metadata       artifact.Metadata `json:"metadata"`
}

// Handler receives events. Handlers run on the goroutine that emitted the
// event and must not block for long.
type Handler func(Event)

// EventBus stores recent events and provides incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewEventBus creates a bounded in-memory event buffer.
func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns its sequence number and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *EventBus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the sequence number of the newest event.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// dispatcher delivers events to handlers in sequence order. Whoever finds
// the dispatcher idle drains the pending queue, including events queued by
// handlers while it runs.
type dispatcher struct {
	running sync.Mutex

	mu       sync.Mutex
	pending  []queued
	handlers map[int]Handler
	order    []int
	nextID   int
}

// queued is an event to deliver or, when fn is set, an action to run once
// every earlier event has been delivered.
type queued struct {
	ev Event
	fn func()
}

func newDispatcher() *dispatcher {
	return &dispatcher{handlers: make(map[int]Handler)}
}

func (d *dispatcher) subscribe(h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.handlers[id] = h
	d.order = append(d.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.handlers, id)
			for i, v := range d.order {
				if v == id {
					d.order = append(d.order[:i], d.order[i+1:]...)
					break
				}
			}
		})
	}
}

// enqueue must be called in sequence order.
func (d *dispatcher) enqueue(events ...Event) {
	d.mu.Lock()
	for _, ev := range events {
		d.pending = append(d.pending, queued{ev: ev})
	}
	d.mu.Unlock()
}

// then queues fn to run after the events already queued.
func (d *dispatcher) then(fn func()) {
	d.mu.Lock()
	d.pending = append(d.pending, queued{fn: fn})
	d.mu.Unlock()
}

func (d *dispatcher) drain() {
	for {
		if !d.running.TryLock() {
			return
		}
		for {
			d.mu.Lock()
			batch := d.pending
			d.pending = nil
			handlers := make([]Handler, 0, len(d.order))
			for _, id := range d.order {
				handlers = append(handlers, d.handlers[id])
			}
			d.mu.Unlock()

			if len(batch) == 0 {
				break
			}
			for _, q := range batch {
				if q.fn != nil {
					q.fn()
					continue
				}
				for _, h := range handlers {
					h(q.ev)
				}
			}
		}
		d.running.Unlock()

		// Events queued after the last check but before Unlock.
		d.mu.Lock()
		more := len(d.pending) > 0
		d.mu.Unlock()
		if !more {
			return
		}
	}
}
