package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/robertarktes/event-admissions/internal/domain"
)

const registrationColumns = `
	id, code, event_id, participant_id, status,
	ticket_payload, ticket_artifact, issued_at,
	contact_name, contact_email, contact_phone,
	checkin_at, checkin_method,
	feedback_rating, feedback_comment, feedback_at,
	cancel_reason, cancel_actor, cancelled_at,
	origin, created_at`

// Same columns qualified for joins against the events table.
const registrationColumnsQualified = `
	r.id, r.code, r.event_id, r.participant_id, r.status,
	r.ticket_payload, r.ticket_artifact, r.issued_at,
	r.contact_name, r.contact_email, r.contact_phone,
	r.checkin_at, r.checkin_method,
	r.feedback_rating, r.feedback_comment, r.feedback_at,
	r.cancel_reason, r.cancel_actor, r.cancelled_at,
	r.origin, r.created_at`

// Create persists a new registration and its confirmation fact in one
// transaction. The partial unique index turns a duplicate active
// registration into domain.ErrAlreadyRegistered.
func (r *Repository) Create(ctx context.Context, reg *domain.Registration) error {
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO registrations (
				id, code, event_id, participant_id, status,
				ticket_payload, ticket_artifact, issued_at,
				contact_name, contact_email, contact_phone,
				origin, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, reg.ID, reg.Code, reg.EventID, reg.ParticipantID, reg.Status,
			reg.Ticket.Payload, reg.Ticket.Artifact, reg.Ticket.IssuedAt,
			reg.Contact.Name, reg.Contact.Email, reg.Contact.Phone,
			reg.Origin, reg.CreatedAt)
		if err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, reg, "registration.confirmed")
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ErrAlreadyRegistered
		}
		return errors.Wrap(err, "insert registration")
	}
	return nil
}

func (r *Repository) FindActive(ctx context.Context, participantID, eventID uuid.UUID) (*domain.Registration, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+registrationColumns+`
		FROM registrations
		WHERE participant_id = $1 AND event_id = $2 AND status <> 'cancelled'
	`, participantID, eventID)
	return scanRegistration(row)
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Registration, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+registrationColumns+`
		FROM registrations WHERE code = $1
	`, code)
	return scanRegistration(row)
}

// Update persists a lifecycle transition and, when the status carries a
// domain fact, the matching outbox row in the same transaction. The write
// is guarded by the status the caller read, so a concurrent transition
// loses cleanly instead of overwriting.
func (r *Repository) Update(ctx context.Context, reg *domain.Registration, from domain.Status) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var (
			checkinAt, feedbackAt, cancelledAt *time.Time
			checkinMethod, cancelReason        *string
			cancelActor, feedbackComment       *string
			feedbackRating                     *int
		)
		if reg.CheckIn != nil {
			checkinAt = &reg.CheckIn.At
			m := string(reg.CheckIn.Method)
			checkinMethod = &m
		}
		if reg.Feedback != nil {
			feedbackRating = &reg.Feedback.Rating
			feedbackComment = &reg.Feedback.Comment
			feedbackAt = &reg.Feedback.SubmittedAt
		}
		if reg.Cancellation != nil {
			cancelReason = &reg.Cancellation.Reason
			a := string(reg.Cancellation.Actor)
			cancelActor = &a
			cancelledAt = &reg.Cancellation.At
		}

		tag, err := tx.Exec(ctx, `
			UPDATE registrations SET
				status = $2,
				ticket_artifact = $3,
				checkin_at = $4, checkin_method = $5,
				feedback_rating = $6, feedback_comment = $7, feedback_at = $8,
				cancel_reason = $9, cancel_actor = $10, cancelled_at = $11
			WHERE code = $1 AND status = $12
		`, reg.Code, reg.Status, reg.Ticket.Artifact,
			checkinAt, checkinMethod,
			feedbackRating, feedbackComment, feedbackAt,
			cancelReason, cancelActor, cancelledAt, from)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var current domain.Status
			err := tx.QueryRow(ctx, `SELECT status FROM registrations WHERE code = $1`, reg.Code).Scan(&current)
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrRegistrationNotFound
			}
			if err != nil {
				return errors.Wrap(err, "diagnose stale update")
			}
			return staleStatusError(current)
		}

		if eventType, ok := outboxTypeFor(reg.Status); ok {
			return r.insertOutbox(ctx, tx, reg, eventType)
		}
		return nil
	})
}

// ListNoShowCandidates returns confirmed registrations for events that
// started before the cutoff.
func (r *Repository) ListNoShowCandidates(ctx context.Context, startedBefore time.Time) ([]*domain.Registration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+registrationColumnsQualified+`
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		WHERE r.status = 'confirmed' AND e.event_start < $1
	`, startedBefore)
	if err != nil {
		return nil, errors.Wrap(err, "list no-show candidates")
	}
	defer rows.Close()

	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, reg *domain.Registration, eventType string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"code":           reg.Code,
		"event_id":       reg.EventID,
		"participant_id": reg.ParticipantID,
		"status":         reg.Status,
	})
	if err != nil {
		return err
	}
	rec := OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "registration",
		AggregateID:   reg.ID,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     reg.Code + ":" + eventType,
	}
	return r.InsertOutbox(ctx, tx, rec)
}

// staleStatusError names the conflict when a guarded update found the row
// already moved on by a concurrent transition.
func staleStatusError(current domain.Status) error {
	switch current {
	case domain.StatusCancelled:
		return domain.ErrAlreadyCancelled
	case domain.StatusAttended:
		return domain.ErrAlreadyCheckedIn
	default:
		return domain.ErrInvalidTransition
	}
}

func outboxTypeFor(status domain.Status) (string, bool) {
	switch status {
	case domain.StatusCancelled:
		return "registration.cancelled", true
	case domain.StatusAttended:
		return "registration.checked_in", true
	case domain.StatusNoShow:
		return "registration.no_show", true
	default:
		return "", false
	}
}

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	var (
		reg                                domain.Registration
		checkinAt, feedbackAt, cancelledAt *time.Time
		checkinMethod, cancelReason        *string
		cancelActor, feedbackComment       *string
		feedbackRating                     *int
	)
	err := row.Scan(
		&reg.ID, &reg.Code, &reg.EventID, &reg.ParticipantID, &reg.Status,
		&reg.Ticket.Payload, &reg.Ticket.Artifact, &reg.Ticket.IssuedAt,
		&reg.Contact.Name, &reg.Contact.Email, &reg.Contact.Phone,
		&checkinAt, &checkinMethod,
		&feedbackRating, &feedbackComment, &feedbackAt,
		&cancelReason, &cancelActor, &cancelledAt,
		&reg.Origin, &reg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan registration")
	}
	reg.Ticket.Code = reg.Code
	if checkinAt != nil && checkinMethod != nil {
		reg.CheckIn = &domain.CheckIn{At: *checkinAt, Method: domain.CheckInMethod(*checkinMethod)}
	}
	if feedbackRating != nil && feedbackAt != nil {
		fb := domain.Feedback{Rating: *feedbackRating, SubmittedAt: *feedbackAt}
		if feedbackComment != nil {
			fb.Comment = *feedbackComment
		}
		reg.Feedback = &fb
	}
	if cancelledAt != nil {
		cl := domain.Cancellation{At: *cancelledAt}
		if cancelReason != nil {
			cl.Reason = *cancelReason
		}
		if cancelActor != nil {
			cl.Actor = domain.Actor(*cancelActor)
		}
		reg.Cancellation = &cl
	}
	return &reg, nil
}
