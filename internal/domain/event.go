package domain

import (
	"time"

	"github.com/google/uuid"
)

type PublicationStatus string

const (
	EventDraft     PublicationStatus = "draft"
	EventPublished PublicationStatus = "published"
	EventCancelled PublicationStatus = "cancelled"
)

// Event is the read side of the event collaborator. CurrentOccupancy is
// mutated only through the capacity ledger; nobody else writes it.
type Event struct {
	ID                   uuid.UUID
	Name                 string
	Capacity             int
	CurrentOccupancy     int
	RegistrationDeadline time.Time
	EventStart           time.Time
	Status               PublicationStatus
}

// Remaining returns the number of free seats.
func (e *Event) Remaining() int {
	return e.Capacity - e.CurrentOccupancy
}

// Admissible reports whether a reservation against this event could succeed
// at the given instant. A capacity of zero always rejects.
func (e *Event) Admissible(now time.Time) error {
	if e.Status != EventPublished {
		return ErrEventNotOpen
	}
	if !now.Before(e.RegistrationDeadline) {
		return ErrDeadlinePassed
	}
	if e.Capacity <= 0 || e.CurrentOccupancy >= e.Capacity {
		return ErrCapacityExceeded
	}
	return nil
}
