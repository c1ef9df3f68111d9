package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusAttended  Status = "attended"
	StatusNoShow    Status = "no-show"
)

type CheckInMethod string

const (
	CheckInQRScan CheckInMethod = "qr-scan"
	CheckInManual CheckInMethod = "manual"
	CheckInSelf   CheckInMethod = "self-checkin"
)

// Actor identifies who triggered a lifecycle transition. The participant
// cancellation window applies only to ActorParticipant.
type Actor string

const (
	ActorParticipant Actor = "participant"
	ActorOrganizer   Actor = "organizer"
	ActorSystem      Actor = "system"
)

// MaxFeedbackComment bounds the free-text feedback field.
const MaxFeedbackComment = 2000

// ContactInfo is the contact snapshot taken at registration time. It is
// deliberately decoupled from the live participant profile so later profile
// edits do not alter historical tickets.
type ContactInfo struct {
	Name  string
	Email string
	Phone string
}

// Ticket is the issued proof of registration. Payload is the source of
// truth; Artifact is derived from it and may be nil if rendering failed.
type Ticket struct {
	Code     string
	Payload  string
	Artifact []byte
	IssuedAt time.Time
}

type CheckIn struct {
	At     time.Time
	Method CheckInMethod
}

type Feedback struct {
	Rating      int
	Comment     string
	SubmittedAt time.Time
}

type Cancellation struct {
	Reason string
	Actor  Actor
	At     time.Time
}

// Registration is the core entity: one claim on one seat. Code is the
// unique shareable identifier, distinct from the opaque storage ID.
type Registration struct {
	ID            uuid.UUID
	Code          string
	EventID       uuid.UUID
	ParticipantID uuid.UUID
	Status        Status
	Ticket        Ticket
	Contact       ContactInfo
	CheckIn       *CheckIn
	Feedback      *Feedback
	Cancellation  *Cancellation
	Origin        string
	CreatedAt     time.Time
}

// Active reports whether this registration still holds a seat or has
// consumed one (anything but cancelled).
func (r *Registration) Active() bool {
	return r.Status != StatusCancelled
}

// Cancel transitions confirmed -> cancelled. Participant-initiated
// cancellations must leave more than window before event start. The seat
// release itself belongs to the caller; Cancel only guards and records.
func (r *Registration) Cancel(actor Actor, reason string, now, eventStart time.Time, window time.Duration) error {
	switch r.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusConfirmed, StatusPending:
	default:
		return ErrInvalidTransition
	}
	if actor == ActorParticipant && eventStart.Sub(now) <= window {
		return ErrTooLateToCancel
	}
	r.Status = StatusCancelled
	r.Cancellation = &Cancellation{Reason: reason, Actor: actor, At: now}
	return nil
}

// RecordCheckIn transitions confirmed -> attended. A second attempt fails
// with ErrAlreadyCheckedIn and leaves the original time and method intact.
func (r *Registration) RecordCheckIn(method CheckInMethod, now time.Time) error {
	if r.CheckIn != nil {
		return ErrAlreadyCheckedIn
	}
	switch r.Status {
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusConfirmed:
	default:
		return ErrInvalidTransition
	}
	switch method {
	case CheckInQRScan, CheckInManual, CheckInSelf:
	default:
		return ErrInvalidInput
	}
	r.Status = StatusAttended
	r.CheckIn = &CheckIn{At: now, Method: method}
	return nil
}

// AttachFeedback records feedback exactly once, only after attendance.
func (r *Registration) AttachFeedback(rating int, comment string, now time.Time) error {
	if r.Status != StatusAttended {
		return ErrNotYetAttended
	}
	if r.Feedback != nil {
		return ErrFeedbackAlreadySubmitted
	}
	if rating < 1 || rating > 5 {
		return ErrInvalidInput
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > MaxFeedbackComment {
		return ErrInvalidInput
	}
	r.Feedback = &Feedback{Rating: rating, Comment: comment, SubmittedAt: now}
	return nil
}

// MarkNoShow is used by the post-event sweep. The event is over, so no
// seat is released.
func (r *Registration) MarkNoShow() error {
	if r.Status != StatusConfirmed {
		return ErrInvalidTransition
	}
	r.Status = StatusNoShow
	return nil
}
