package shop

import (
	"slices"
	"sync"
)

// ChangeKind names which part of the shop context moved.
type ChangeKind string

const (
	ChangeCustomer ChangeKind = "customer"
	ChangeVehicle  ChangeKind = "vehicle"
	ChangeResearch ChangeKind = "research"
)

// Snapshot is a read-only copy of the selected customer, vehicle and research.
type Snapshot struct {
	Customer *Customer
	Vehicle  *Vehicle
	Research *Research
}

func (s Snapshot) HasCustomer() bool {
	return s.Customer != nil
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{}
	if s.Customer != nil {
		c := *s.Customer
		out.Customer = &c
	}
	if s.Vehicle != nil {
		v := *s.Vehicle
		out.Vehicle = &v
	}
	if s.Research != nil {
		r := *s.Research
		r.Findings = slices.Clone(s.Research.Findings)
		out.Research = &r
	}
	return out
}

// ContextStore holds the UI-owned selection. Writers are UI layers; the session core
// only reads through Snapshot and Subscribe.
type ContextStore struct {
	mu     sync.RWMutex
	snap   Snapshot
	nextID int
	subs   map[int]chan ChangeKind
}

func NewContextStore() *ContextStore {
	return &ContextStore{subs: make(map[int]chan ChangeKind)}
}

func (s *ContextStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// SetCustomer selects a customer (nil clears). A vehicle that belongs to another
// customer is deselected.
func (s *ContextStore) SetCustomer(c *Customer) {
	s.mu.Lock()
	vehicleCleared := false
	if c == nil {
		s.snap.Customer = nil
		vehicleCleared = s.snap.Vehicle != nil
		s.snap.Vehicle = nil
	} else {
		cp := *c
		s.snap.Customer = &cp
		if s.snap.Vehicle != nil && s.snap.Vehicle.CustomerID != "" && s.snap.Vehicle.CustomerID != c.ID {
			s.snap.Vehicle = nil
			vehicleCleared = true
		}
	}
	s.mu.Unlock()

	s.notify(ChangeCustomer)
	if vehicleCleared {
		s.notify(ChangeVehicle)
	}
}

func (s *ContextStore) SetVehicle(v *Vehicle) {
	s.mu.Lock()
	if v == nil {
		s.snap.Vehicle = nil
	} else {
		cp := *v
		s.snap.Vehicle = &cp
	}
	s.mu.Unlock()
	s.notify(ChangeVehicle)
}

func (s *ContextStore) SetResearch(r *Research) {
	s.mu.Lock()
	if r == nil {
		s.snap.Research = nil
	} else {
		cp := *r
		cp.Findings = slices.Clone(r.Findings)
		s.snap.Research = &cp
	}
	s.mu.Unlock()
	s.notify(ChangeResearch)
}

// Subscribe returns a channel of change notifications and a cancel func. A slow
// subscriber misses intermediate kinds but never blocks writers; readers are
// expected to re-read Snapshot on every notification.
func (s *ContextStore) Subscribe(buffer int) (<-chan ChangeKind, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan ChangeKind, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *ContextStore) notify(kind ChangeKind) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- kind:
		default:
		}
	}
}
