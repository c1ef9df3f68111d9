package mongo

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/event-admissions/internal/domain"
	"github.com/robertarktes/event-admissions/internal/observability"
)

// Profiles reads participant contact details from the profile collection
// maintained by the accounts service.
type Profiles struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewProfiles(db *mongo.Database, logger observability.Logger) *Profiles {
	return &Profiles{
		coll:   db.Collection("participant_profiles"),
		logger: logger,
	}
}

type profileDoc struct {
	ID    uuid.UUID `bson:"_id"`
	Name  string    `bson:"name"`
	Email string    `bson:"email"`
	Phone string    `bson:"phone"`
}

// GetProfile returns an empty ContactInfo when the participant has no
// profile document. Admission proceeds with whatever the request supplied.
func (p *Profiles) GetProfile(ctx context.Context, participantID uuid.UUID) (domain.ContactInfo, error) {
	var doc profileDoc
	err := p.coll.FindOne(ctx, bson.M{"_id": participantID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return domain.ContactInfo{}, nil
	}
	if err != nil {
		return domain.ContactInfo{}, err
	}
	return domain.ContactInfo{Name: doc.Name, Email: doc.Email, Phone: doc.Phone}, nil
}

func (p *Profiles) UpsertProfile(ctx context.Context, participantID uuid.UUID, contact domain.ContactInfo) error {
	_, err := p.coll.UpdateOne(
		ctx,
		bson.M{"_id": participantID},
		bson.M{"$set": bson.M{"name": contact.Name, "email": contact.Email, "phone": contact.Phone}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		p.logger.WithError(err).Error("failed to upsert participant profile")
	}
	return err
}
