package store

import "time"

// --- Archive index (index.json) ---

type Summary struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Customer  string    `json:"customer,omitempty"`
	Vehicle   string    `json:"vehicle,omitempty"`
	Items     int       `json:"items"`
	Reason    string    `json:"reason,omitempty"` // "local", "remote"
}

type index struct {
	Transcripts map[string]Summary `json:"transcripts"`
}

// --- Transcript (<id>.json) ---

type Transcript struct {
	ID        string            `json:"id"` // ULID
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
	Customer  string            `json:"customer,omitempty"`
	Vehicle   string            `json:"vehicle,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Items     []TranscriptItem  `json:"items"`
	Memory    map[string]string `json:"memory,omitempty"`
	Events    []EventCount      `json:"events,omitempty"`
}

type TranscriptItem struct {
	ID     string `json:"id"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
	Text   string `json:"text,omitempty"`
	Name   string `json:"name,omitempty"`    // For tools
	CallID string `json:"call_id,omitempty"` // Links output to call
}

// EventCount is one coalesced event log line.
type EventCount struct {
	Offset time.Duration `json:"offset"`
	Source string        `json:"source"`
	Type   string        `json:"type"`
	Count  int           `json:"count"`
}

func (t *Transcript) Summary() Summary {
	return Summary{
		ID:        t.ID,
		StartedAt: t.StartedAt,
		EndedAt:   t.EndedAt,
		Customer:  t.Customer,
		Vehicle:   t.Vehicle,
		Items:     len(t.Items),
		Reason:    t.Reason,
	}
}
