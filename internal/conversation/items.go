package conversation

import (
	"slices"
	"strings"

	"github.com/harunnryd/torque/internal/realtime"
)

type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemInProgress ItemStatus = "in_progress"
	ItemCompleted  ItemStatus = "completed"
	ItemError      ItemStatus = "error"
)

// Item is one entry of the conversation as the UI shows it.
type Item struct {
	ID         string
	Role       string
	Type       string
	Status     ItemStatus
	Text       string
	Transcript string
	Audio      []int16
	CallID     string
	Name       string
	Arguments  string
	Output     string
}

func (it *Item) clone(withAudio bool) *Item {
	cp := *it
	if withAudio {
		cp.Audio = slices.Clone(it.Audio)
	} else {
		cp.Audio = nil
	}
	return &cp
}

func itemStatus(wire string) ItemStatus {
	switch wire {
	case realtime.ItemStatusInProgress:
		return ItemInProgress
	case realtime.ItemStatusCompleted, realtime.ItemStatusIncomplete:
		return ItemCompleted
	case "":
		return ItemPending
	default:
		return ItemError
	}
}

// itemFromWire converts a server item. Text parts and audio transcripts are kept
// apart so the UI can show either.
func itemFromWire(w *realtime.Item) *Item {
	it := &Item{
		ID:        w.ID,
		Role:      w.Role,
		Type:      w.Type,
		Status:    itemStatus(w.Status),
		CallID:    w.CallID,
		Name:      w.Name,
		Arguments: w.Arguments,
		Output:    w.Output,
	}
	mergeContent(it, w.Content)
	if it.Type == realtime.ItemFunctionCallOutput && it.Text == "" {
		it.Text = w.Output
	}
	return it
}

func mergeContent(it *Item, parts []realtime.ContentPart) {
	var text, transcript strings.Builder
	for _, p := range parts {
		if p.Text != "" {
			text.WriteString(p.Text)
		}
		if p.Transcript != "" {
			transcript.WriteString(p.Transcript)
		}
	}
	if text.Len() > 0 {
		it.Text = text.String()
	}
	if transcript.Len() > 0 {
		it.Transcript = transcript.String()
	}
}

// itemList keeps insertion order plus an index by id. Guarded by Controller.mu.
type itemList struct {
	order []*Item
	byID  map[string]*Item
}

func newItemList() itemList {
	return itemList{byID: make(map[string]*Item)}
}

func (l *itemList) get(id string) (*Item, bool) {
	it, ok := l.byID[id]
	return it, ok
}

// upsert adds it, or merges it into an existing item with the same id. It reports
// whether the item is new.
func (l *itemList) upsert(it *Item) (*Item, bool) {
	if existing, ok := l.byID[it.ID]; ok {
		audio := existing.Audio
		text, transcript := existing.Text, existing.Transcript
		*existing = *it
		existing.Audio = audio
		if existing.Text == "" {
			existing.Text = text
		}
		if existing.Transcript == "" {
			existing.Transcript = transcript
		}
		return existing, false
	}
	l.order = append(l.order, it)
	l.byID[it.ID] = it
	return it, true
}

func (l *itemList) remove(id string) bool {
	if _, ok := l.byID[id]; !ok {
		return false
	}
	delete(l.byID, id)
	l.order = slices.DeleteFunc(l.order, func(it *Item) bool { return it.ID == id })
	return true
}

func (l *itemList) snapshot(withAudio bool) []Item {
	out := make([]Item, 0, len(l.order))
	for _, it := range l.order {
		out = append(out, *it.clone(withAudio))
	}
	return out
}

func (l *itemList) len() int {
	return len(l.order)
}
