// Package eventlog keeps an ordered, coalescing record of session traffic.
package eventlog

import (
	"encoding/json"
	"sync"
	"time"
)

type Source string

const (
	SourceClient Source = "client"
	SourceServer Source = "server"
)

// Entry is one logged message. Time is relative to the session start.
type Entry struct {
	Time    time.Duration   `json:"time"`
	Source  Source          `json:"source"`
	Type    string          `json:"type"`
	Count   int             `json:"count"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

func New() *Log {
	return &Log{}
}

// Append merges e into the last entry when both share a type, otherwise appends it
// with a count of one. The merged entry keeps its position and takes the newer
// time, source and payload.
func (l *Log) Append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries); n > 0 && l.entries[n-1].Type == e.Type {
		last := &l.entries[n-1]
		last.Count++
		last.Time = e.Time
		last.Source = e.Source
		last.Payload = e.Payload
		return
	}

	e.Count = 1
	l.entries = append(l.entries, e)
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
