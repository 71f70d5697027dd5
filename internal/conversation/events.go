package conversation

import (
	"log/slog"

	"github.com/harunnryd/torque/internal/audio"
	"github.com/harunnryd/torque/internal/tool"
)

// EventKind tags entries of the outbound stream.
type EventKind string

const (
	EventStatus       EventKind = "status"
	EventItemAdded    EventKind = "item.added"
	EventItemUpdated  EventKind = "item.updated"
	EventItemRemoved  EventKind = "item.removed"
	EventItemsCleared EventKind = "items.cleared"
	EventRecording    EventKind = "recording"
	EventInterrupted  EventKind = "interrupted"
	EventToolResult   EventKind = "tool.result"
	EventMemory       EventKind = "memory"
	EventError        EventKind = "error"
)

// Event is one notification for UI layers. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	Status    Status
	Recording bool

	// Item is a copy without audio samples. Delta carries the text appended by
	// an item.updated event when the update was incremental.
	Item  *Item
	Delta string

	Interruption *audio.Interruption
	Tool         *tool.Outcome

	Key   string
	Value string

	Err error
}

type subscriber struct {
	ch chan Event
}

// Subscribe registers a listener on the outbound stream. Events are delivered in
// order; a subscriber whose buffer is full misses events rather than stalling the
// session.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Event, buffer)}

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = sub
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if s, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// emit fans ev out without blocking. Events describing session state are emitted
// with mu held, so nothing from an ended session can follow its teardown events.
// Lock order is mu then subMu.
func (c *Controller) emit(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, s := range c.subs {
		select {
		case s.ch <- ev:
		default:
			slog.Debug("Dropping controller event for slow subscriber", "kind", ev.Kind)
		}
	}
}

func (c *Controller) emitError(err error) {
	if err == nil {
		return
	}
	c.emit(Event{Kind: EventError, Err: err})
}

func (c *Controller) closeSubscribers() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, s := range c.subs {
		delete(c.subs, id)
		close(s.ch)
	}
}
