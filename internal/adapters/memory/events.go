// Package memory holds in-memory implementations of the store and ledger
// ports. They back unit tests and single-node deployments without postgres.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robertarktes/event-admissions/internal/clock"
	"github.com/robertarktes/event-admissions/internal/domain"
)

// EventStore keeps events in a map and implements both the event read port
// and the capacity ledger. Reservation is serialized per event with one
// mutex per entry; different events never contend.
type EventStore struct {
	clock clock.Clock

	mu     sync.RWMutex
	events map[uuid.UUID]*eventEntry
}

type eventEntry struct {
	mu sync.Mutex
	ev domain.Event
}

func NewEventStore(clk clock.Clock) *EventStore {
	return &EventStore{
		clock:  clk,
		events: make(map[uuid.UUID]*eventEntry),
	}
}

// Put inserts or replaces an event.
func (s *EventStore) Put(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = &eventEntry{ev: ev}
}

func (s *EventStore) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	entry := s.entry(id)
	if entry == nil {
		return nil, domain.ErrEventNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	ev := entry.ev
	return &ev, nil
}

// TryReserve atomically admits one seat claim. The policy checks and the
// increment happen under the same per-event lock.
func (s *EventStore) TryReserve(ctx context.Context, eventID uuid.UUID) error {
	entry := s.entry(eventID)
	if entry == nil {
		return domain.ErrEventNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if err := entry.ev.Admissible(s.clock.Now()); err != nil {
		return err
	}
	entry.ev.CurrentOccupancy++
	return nil
}

// Release frees one seat. Occupancy never goes below zero; an attempt to
// release at zero reports ErrLedgerUnderflow and leaves the counter alone.
func (s *EventStore) Release(ctx context.Context, eventID uuid.UUID) error {
	entry := s.entry(eventID)
	if entry == nil {
		return domain.ErrEventNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.ev.CurrentOccupancy <= 0 {
		return domain.ErrLedgerUnderflow
	}
	entry.ev.CurrentOccupancy--
	return nil
}

// StartOf reports an event's start time for the no-show sweep.
func (s *EventStore) StartOf(id uuid.UUID) (time.Time, bool) {
	entry := s.entry(id)
	if entry == nil {
		return time.Time{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.ev.EventStart, true
}

func (s *EventStore) entry(id uuid.UUID) *eventEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events[id]
}
