// Package mongo holds the document-store adapters: the lifecycle audit
// trail and participant profiles. Audit querying and retention are
// operational concerns outside the service.
package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/robertarktes/event-admissions/internal/domain"
	"github.com/robertarktes/event-admissions/internal/observability"
)

type AuditTrail struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditTrail(db *mongo.Database, logger observability.Logger) *AuditTrail {
	return &AuditTrail{
		coll:   db.Collection("registration_audit"),
		logger: logger,
	}
}

type auditDoc struct {
	ID               uuid.UUID `bson:"_id"`
	RegistrationCode string    `bson:"registration_code"`
	EventID          uuid.UUID `bson:"event_id"`
	ParticipantID    uuid.UUID `bson:"participant_id"`
	From             string    `bson:"from_status"`
	To               string    `bson:"to_status"`
	Actor            string    `bson:"actor"`
	Reason           string    `bson:"reason,omitempty"`
	At               time.Time `bson:"at"`
}

// Record appends one transition. Failures are returned for the caller to
// log; the transition itself is already durable.
func (a *AuditTrail) Record(ctx context.Context, entry domain.TransitionAudit) error {
	doc := auditDoc{
		ID:               uuid.New(),
		RegistrationCode: entry.RegistrationCode,
		EventID:          entry.EventID,
		ParticipantID:    entry.ParticipantID,
		From:             string(entry.From),
		To:               string(entry.To),
		Actor:            string(entry.Actor),
		Reason:           entry.Reason,
		At:               entry.At,
	}
	_, err := a.coll.InsertOne(ctx, doc)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit document")
		return err
	}
	return nil
}
