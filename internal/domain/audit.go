package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransitionAudit is one entry in the lifecycle audit trail. Every status
// change produces one, appended best-effort outside the transaction.
type TransitionAudit struct {
	RegistrationCode string
	EventID          uuid.UUID
	ParticipantID    uuid.UUID
	From             Status
	To               Status
	Actor            Actor
	Reason           string
	At               time.Time
}
