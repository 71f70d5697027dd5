package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/torque/internal/concurrency"
	"github.com/harunnryd/torque/internal/eventlog"
	"github.com/harunnryd/torque/internal/logger"
	"github.com/harunnryd/torque/internal/realtime"
	"github.com/harunnryd/torque/internal/store"
	"github.com/harunnryd/torque/internal/tool"
)

// handleServerEvent applies one server message. Events from a handle that is no
// longer current are ignored.
func (c *Controller) handleServerEvent(gen uint64, ev realtime.ServerEvent) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	entry := eventlog.Entry{
		Time:   time.Since(c.startedAt),
		Source: eventlog.SourceServer,
		Type:   ev.Type,
	}
	if ev.Type != realtime.EventAudioDelta {
		entry.Payload = ev.Raw
	}
	c.log.Append(entry)
	c.mu.Unlock()

	switch ev.Type {
	case realtime.EventItemCreated:
		c.onItemCreated(gen, ev)
	case realtime.EventItemDeleted:
		c.onItemDeleted(gen, ev.ItemID)
	case realtime.EventAudioDelta:
		c.onAudioDelta(gen, ev)
	case realtime.EventAudioTranscriptDelta:
		c.appendText(gen, ev.ItemID, ev.Delta, true)
	case realtime.EventTextDelta:
		c.appendText(gen, ev.ItemID, ev.Delta, false)
	case realtime.EventInputTranscriptionDone:
		c.onInputTranscription(gen, ev)
	case realtime.EventOutputItemDone:
		c.onOutputItemDone(gen, ev)
	case realtime.EventFunctionCallArgumentsDone:
		c.onFunctionCall(gen, ev)
	case realtime.EventSpeechStarted:
		c.interrupt(gen)
	case realtime.EventError:
		c.emitError(serverError(ev))
	}
}

func serverError(ev realtime.ServerEvent) error {
	if ev.Error == nil {
		return errors.New("realtime error")
	}
	if ev.Error.Code != "" {
		return fmt.Errorf("realtime error %s: %s", ev.Error.Code, ev.Error.Message)
	}
	return fmt.Errorf("realtime error: %s", ev.Error.Message)
}

func (c *Controller) onItemCreated(gen uint64, ev realtime.ServerEvent) {
	if ev.Item == nil || ev.Item.ID == "" {
		return
	}
	it := itemFromWire(ev.Item)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	stored, added := c.items.upsert(it)
	kind := EventItemUpdated
	if added {
		kind = EventItemAdded
	}
	c.emit(Event{Kind: kind, Item: stored.clone(false)})
	c.mu.Unlock()
}

func (c *Controller) onItemDeleted(gen uint64, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen && c.items.remove(id) {
		c.emit(Event{Kind: EventItemRemoved, Item: &Item{ID: id}})
	}
}

func (c *Controller) onAudioDelta(gen uint64, ev realtime.ServerEvent) {
	samples, err := realtime.DecodePCM16(ev.Delta)
	if err != nil {
		slog.Warn("Skipping undecodable audio delta", "item_id", ev.ItemID, "error", err)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if it, ok := c.items.get(ev.ItemID); ok {
		it.Audio = append(it.Audio, samples...)
	}
	c.mu.Unlock()

	c.audio.PushPlaybackSamples(samples, ev.ItemID)
}

func (c *Controller) appendText(gen uint64, id, delta string, transcript bool) {
	if delta == "" {
		return
	}
	c.mu.Lock()
	it, ok := c.items.get(id)
	if gen != c.gen || !ok {
		c.mu.Unlock()
		return
	}
	if transcript {
		it.Transcript += delta
	} else {
		it.Text += delta
	}
	it.Status = ItemInProgress
	c.emit(Event{Kind: EventItemUpdated, Item: it.clone(false), Delta: delta})
	c.mu.Unlock()
}

func (c *Controller) onInputTranscription(gen uint64, ev realtime.ServerEvent) {
	c.mu.Lock()
	it, ok := c.items.get(ev.ItemID)
	if gen != c.gen || !ok {
		c.mu.Unlock()
		return
	}
	it.Transcript = ev.Transcript
	c.emit(Event{Kind: EventItemUpdated, Item: it.clone(false)})
	c.mu.Unlock()
}

func (c *Controller) onOutputItemDone(gen uint64, ev realtime.ServerEvent) {
	if ev.Item == nil {
		return
	}
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	it, ok := c.items.get(ev.Item.ID)
	if !ok {
		it, _ = c.items.upsert(itemFromWire(ev.Item))
	}
	it.Status = itemStatus(ev.Item.Status)
	if it.Status == ItemPending {
		it.Status = ItemCompleted
	}
	if ev.Item.Arguments != "" {
		it.Arguments = ev.Item.Arguments
	}
	mergeContent(it, ev.Item.Content)
	c.emit(Event{Kind: EventItemUpdated, Item: it.clone(false)})
	c.mu.Unlock()
}

func (c *Controller) onFunctionCall(gen uint64, ev realtime.ServerEvent) {
	inv := tool.Invocation{CallID: ev.CallID, Name: ev.Name, Arguments: ev.Arguments}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	if it, ok := c.items.get(ev.ItemID); ok {
		it.Arguments = ev.Arguments
		if inv.Name == "" {
			inv.Name = it.Name
		}
		if inv.CallID == "" {
			inv.CallID = it.CallID
		}
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	ctx := logger.WithSessionID(context.Background(), sessionID)
	concurrency.SafeGo(func() { c.runTool(ctx, gen, inv) }, nil)
}

// runTool dispatches one call and sends back, in order, the function output, a
// feedback message and a response request. Results of a session that has since
// ended are dropped.
func (c *Controller) runTool(ctx context.Context, gen uint64, inv tool.Invocation) {
	outcome := c.dispatcher.Dispatch(ctx, inv)

	c.mu.Lock()
	if gen != c.gen || c.handle == nil {
		c.mu.Unlock()
		logger.From(ctx).Info("Dropping tool result for ended session", "tool", outcome.Name, "status", outcome.Result.Status)
		return
	}
	c.sendLocked(gen, realtime.NewFunctionCallOutput(outcome.CallID, outcome.Output))
	c.sendLocked(gen, realtime.NewSystemText(outcome.Feedback))
	c.sendLocked(gen, realtime.NewResponseCreate())
	c.emit(Event{Kind: EventToolResult, Tool: &outcome})
	c.mu.Unlock()
}

// transcriptLocked snapshots the session for the archive. Caller holds mu.
func (c *Controller) transcriptLocked(reason string) *store.Transcript {
	snap := c.shop.Snapshot()
	t := &store.Transcript{
		StartedAt: c.startedAt,
		EndedAt:   time.Now(),
		Reason:    reason,
		Memory:    make(map[string]string, len(c.memory)),
	}
	if snap.Customer != nil {
		t.Customer = snap.Customer.FullName()
	}
	if snap.Vehicle != nil {
		t.Vehicle = snap.Vehicle.Describe()
	}
	for k, v := range c.memory {
		t.Memory[k] = v
	}
	for _, it := range c.items.order {
		text := it.Text
		if text == "" {
			text = it.Transcript
		}
		if it.Type == realtime.ItemFunctionCall && text == "" {
			text = it.Arguments
		}
		t.Items = append(t.Items, store.TranscriptItem{
			ID:     it.ID,
			Role:   it.Role,
			Type:   it.Type,
			Status: string(it.Status),
			Text:   text,
			Name:   it.Name,
			CallID: it.CallID,
		})
	}
	for _, e := range c.log.Entries() {
		t.Events = append(t.Events, store.EventCount{
			Offset: e.Time,
			Source: string(e.Source),
			Type:   e.Type,
			Count:  e.Count,
		})
	}
	return t
}
