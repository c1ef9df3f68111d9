package domain

import (
	"errors"
	"fmt"
)

// Admission errors. Expected, user-facing, never retried by the core.
var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventNotOpen      = errors.New("event not open for registration")
	ErrDeadlinePassed    = errors.New("registration deadline passed")
	ErrCapacityExceeded  = errors.New("event capacity exceeded")
	ErrAlreadyRegistered = errors.New("already registered for event")
)

// Lifecycle errors.
var (
	ErrRegistrationNotFound     = errors.New("registration not found")
	ErrTooLateToCancel          = errors.New("too late to cancel")
	ErrAlreadyCancelled         = errors.New("registration already cancelled")
	ErrAlreadyCheckedIn         = errors.New("registration already checked in")
	ErrNotYetAttended           = errors.New("registration not yet attended")
	ErrFeedbackAlreadySubmitted = errors.New("feedback already submitted")
	ErrInvalidTransition        = errors.New("invalid registration transition")
)

// Integrity and infrastructure errors.
var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrLedgerUnderflow      = errors.New("occupancy release below zero")
	ErrInvalidInput         = errors.New("invalid input")
)

// AlreadyRegisteredError carries the existing registration's code and status
// so the caller can recover instead of treating the conflict as opaque.
type AlreadyRegisteredError struct {
	Code   string
	Status Status
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("already registered: code %s, status %s", e.Code, e.Status)
}

// Is makes errors.Is(err, ErrAlreadyRegistered) match the typed form.
func (e *AlreadyRegisteredError) Is(target error) bool {
	return target == ErrAlreadyRegistered
}
