package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robertarktes/event-admissions/internal/domain"
)

type pairKey struct {
	participantID uuid.UUID
	eventID       uuid.UUID
}

// EventIndex resolves event start times for the no-show sweep.
type EventIndex interface {
	StartOf(eventID uuid.UUID) (time.Time, bool)
}

// RegistrationStore keeps registrations keyed by code with an index of
// active registrations per (participant, event) pair, mirroring the partial
// unique constraint of the postgres store.
type RegistrationStore struct {
	events EventIndex

	mu     sync.Mutex
	byCode map[string]*domain.Registration
	active map[pairKey]string
}

func NewRegistrationStore() *RegistrationStore {
	return &RegistrationStore{
		byCode: make(map[string]*domain.Registration),
		active: make(map[pairKey]string),
	}
}

// UseEventIndex wires the event lookup needed by ListNoShowCandidates.
func (s *RegistrationStore) UseEventIndex(events EventIndex) {
	s.events = events
}

func (s *RegistrationStore) Create(ctx context.Context, reg *domain.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{reg.ParticipantID, reg.EventID}
	if _, taken := s.active[key]; taken {
		return domain.ErrAlreadyRegistered
	}
	cp := cloneRegistration(reg)
	s.byCode[reg.Code] = cp
	if reg.Active() {
		s.active[key] = reg.Code
	}
	return nil
}

func (s *RegistrationStore) FindActive(ctx context.Context, participantID, eventID uuid.UUID) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.active[pairKey{participantID, eventID}]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	return cloneRegistration(s.byCode[code]), nil
}

func (s *RegistrationStore) GetByCode(ctx context.Context, code string) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.byCode[code]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	return cloneRegistration(reg), nil
}

// Update applies a transition only when the stored status still matches
// what the caller read, mirroring the guarded UPDATE of the postgres store.
func (s *RegistrationStore) Update(ctx context.Context, reg *domain.Registration, from domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byCode[reg.Code]
	if !ok {
		return domain.ErrRegistrationNotFound
	}
	if stored.Status != from {
		switch stored.Status {
		case domain.StatusCancelled:
			return domain.ErrAlreadyCancelled
		case domain.StatusAttended:
			return domain.ErrAlreadyCheckedIn
		default:
			return domain.ErrInvalidTransition
		}
	}
	key := pairKey{stored.ParticipantID, stored.EventID}
	if reg.Active() {
		s.active[key] = reg.Code
	} else if s.active[key] == reg.Code {
		delete(s.active, key)
	}
	s.byCode[reg.Code] = cloneRegistration(reg)
	return nil
}

// ListNoShowCandidates returns confirmed registrations whose event started
// before cutoff.
func (s *RegistrationStore) ListNoShowCandidates(ctx context.Context, cutoff time.Time) ([]*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Registration
	for _, reg := range s.byCode {
		if reg.Status != domain.StatusConfirmed {
			continue
		}
		start, ok := s.events.StartOf(reg.EventID)
		if !ok || !start.Before(cutoff) {
			continue
		}
		out = append(out, cloneRegistration(reg))
	}
	return out, nil
}

func cloneRegistration(reg *domain.Registration) *domain.Registration {
	cp := *reg
	if reg.CheckIn != nil {
		ci := *reg.CheckIn
		cp.CheckIn = &ci
	}
	if reg.Feedback != nil {
		fb := *reg.Feedback
		cp.Feedback = &fb
	}
	if reg.Cancellation != nil {
		cl := *reg.Cancellation
		cp.Cancellation = &cl
	}
	if reg.Ticket.Artifact != nil {
		cp.Ticket.Artifact = append([]byte(nil), reg.Ticket.Artifact...)
	}
	return &cp
}
