package admission

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/robertarktes/event-admissions/internal/domain"
)

// EventStore is the read side of the external event collaborator.
type EventStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

// Ledger owns the per-event occupancy counter. TryReserve returns nil when
// a seat was claimed, or one of ErrEventNotOpen, ErrDeadlinePassed,
// ErrCapacityExceeded, ErrEventNotFound. Implementations must be atomic
// with respect to concurrent calls for the same event.
type Ledger interface {
	TryReserve(ctx context.Context, eventID uuid.UUID) error
	Release(ctx context.Context, eventID uuid.UUID) error
}

// RegistrationStore persists registrations. Create must enforce at most one
// non-cancelled registration per (participant, event) and return
// domain.ErrAlreadyRegistered on violation.
type RegistrationStore interface {
	Create(ctx context.Context, reg *domain.Registration) error
	FindActive(ctx context.Context, participantID, eventID uuid.UUID) (*domain.Registration, error)
}

// ProfileStore fills gaps in the contact snapshot from the live profile.
type ProfileStore interface {
	GetProfile(ctx context.Context, participantID uuid.UUID) (domain.ContactInfo, error)
}

// Notifier delivers the ticket. Best effort: failures are logged by the
// caller and never propagate.
type Notifier interface {
	SendTicket(ctx context.Context, contact domain.ContactInfo, tkt domain.Ticket) error
}

// Auditor appends to the lifecycle audit trail. Best effort.
type Auditor interface {
	Record(ctx context.Context, entry domain.TransitionAudit) error
}

// Issuer produces the ticket for a successful admission.
type Issuer interface {
	Issue(eventID, participantID uuid.UUID, now time.Time) (domain.Ticket, error)
}
