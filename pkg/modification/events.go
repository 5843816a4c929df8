package modification

import (
	"slices"
	"sync"
	"time"
)

// ChangeEventType categorizes the state changes a Log reports.
type ChangeEventType string

const (
	// EventModeEnabled is emitted when modification mode is switched on.
	EventModeEnabled ChangeEventType = "mode.enabled"
	// EventModeDisabled is emitted when modification mode is switched off.
	EventModeDisabled ChangeEventType = "mode.disabled"
	// EventMoveStarted is emitted when a source node is picked for a move.
	EventMoveStarted ChangeEventType = "move.started"
	// EventMoveFinished is emitted when a move gesture ends, with or without a target.
	EventMoveFinished ChangeEventType = "move.finished"
	// EventModificationAdded is emitted after an entry is appended.
	EventModificationAdded ChangeEventType = "modification.added"
	// EventModificationRemoved is emitted after one or more entries are removed.
	EventModificationRemoved ChangeEventType = "modification.removed"
	// EventLogReset is emitted when the log returns to its initial state.
	EventLogReset ChangeEventType = "log.reset"
)

// ChangeEvent describes a completed mutation of a Log.
type ChangeEvent struct {
	// Type categorizes the event.
	Type ChangeEventType
	// Timestamp records when the mutation happened.
	Timestamp time.Time
	// Status is the log status after the mutation.
	Status Status
	// Count is the number of entries in the log after the mutation.
	Count int
	// Modification is the entry added or removed, if a single one is involved.
	Modification Modification
	// Removed is the number of entries removed (removal events only).
	Removed int
}

// EventFilter selects which change events a subscriber receives.
type EventFilter struct {
	// EventTypes lists the accepted event types (empty means all).
	EventTypes []ChangeEventType
}

// Matches returns true if the event passes the filter.
func (f *EventFilter) Matches(event ChangeEvent) bool {
	if len(f.EventTypes) == 0 {
		return true
	}
	return slices.Contains(f.EventTypes, event.Type)
}

// subscriberBuffer bounds each subscriber channel; events beyond it are dropped.
const subscriberBuffer = 64

type subscription struct {
	ch     chan ChangeEvent
	filter *EventFilter
}

// broadcaster fans change events out to subscribers without blocking the emitter.
type broadcaster struct {
	mu          sync.RWMutex
	subscribers []*subscription
	closed      bool
}

func (b *broadcaster) subscribe(filter *EventFilter) <-chan ChangeEvent {
	return b.subscribeSized(filter, subscriberBuffer)
}

// subscribeSized subscribes with a buffer of size, never less than subscriberBuffer.
func (b *broadcaster) subscribeSized(filter *EventFilter, size int) <-chan ChangeEvent {
	size = max(size, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan ChangeEvent)
		close(ch)
		return ch
	}

	sub := &subscription{
		ch:     make(chan ChangeEvent, size),
		filter: filter,
	}
	b.subscribers = append(b.subscribers, sub)
	return sub.ch
}

func (b *broadcaster) unsubscribe(ch <-chan ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub.ch == ch {
			close(sub.ch)
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

func (b *broadcaster) emit(event ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, sub := range b.subscribers {
		if sub.filter != nil && !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Slow subscriber; drop rather than stall the editing session.
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = nil
}
