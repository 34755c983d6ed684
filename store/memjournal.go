package store

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemJournal keeps events in memory.
type MemJournal struct {
	mu     sync.RWMutex
	events []*Event
	byID   map[uuid.UUID]int
}

var _ Journal = (*MemJournal)(nil)

// NewMemJournal returns an empty in-memory journal.
func NewMemJournal() *MemJournal {
	return &MemJournal{byID: make(map[uuid.UUID]int)}
}

func (m *MemJournal) Append(ev *Event) error {
	if err := prepare(ev); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[ev.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
	}
	ev.Seq = uint64(len(m.events)) + 1
	cp := *ev
	m.byID[ev.ID] = len(m.events)
	m.events = append(m.events, &cp)
	return nil
}

func (m *MemJournal) Get(id uuid.UUID) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	cp := *m.events[i]
	return &cp, nil
}

func (m *MemJournal) List(f Filter) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Event
	for _, ev := range m.events {
		if !f.match(ev) {
			continue
		}
		cp := *ev
		out = append(out, &cp)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemJournal) Close() error { return nil }
