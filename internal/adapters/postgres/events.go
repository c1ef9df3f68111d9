package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/robertarktes/event-admissions/internal/domain"
)

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var ev domain.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, capacity, current_occupancy, registration_deadline, event_start, status
		FROM events WHERE id = $1
	`, id).Scan(&ev.ID, &ev.Name, &ev.Capacity, &ev.CurrentOccupancy,
		&ev.RegistrationDeadline, &ev.EventStart, &ev.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get event")
	}
	return &ev, nil
}

// CreateEvent inserts an event. Used by seeding and tests; occupancy starts
// at whatever the caller says, normally zero.
func (r *Repository) CreateEvent(ctx context.Context, ev domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, name, capacity, current_occupancy, registration_deadline, event_start, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.ID, ev.Name, ev.Capacity, ev.CurrentOccupancy, ev.RegistrationDeadline, ev.EventStart, ev.Status)
	return errors.Wrap(err, "insert event")
}

// TryReserve claims one seat with a single conditional increment. The
// policy checks and the capacity check are one atomic statement, so
// concurrent callers for the last seat cannot both pass.
func (r *Repository) TryReserve(ctx context.Context, eventID uuid.UUID) error {
	now := r.clock.Now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE events SET current_occupancy = current_occupancy + 1
		WHERE id = $1
		  AND status = 'published'
		  AND current_occupancy < capacity
		  AND registration_deadline > $2
	`, eventID, now)
	if err != nil {
		return errors.Wrap(err, "reserve seat")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// The increment did not apply; read the row once to say why.
	ev, err := r.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if aerr := ev.Admissible(now); aerr != nil {
		return aerr
	}
	// The row became admissible between the two statements. Treat the
	// attempt as a capacity conflict; the caller may retry.
	return domain.ErrCapacityExceeded
}

// Release frees one seat, never dropping occupancy below zero. A release
// request at zero is reported as an underflow anomaly and changes nothing.
func (r *Repository) Release(ctx context.Context, eventID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE events SET current_occupancy = current_occupancy - 1
		WHERE id = $1 AND current_occupancy > 0
	`, eventID)
	if err != nil {
		return errors.Wrap(err, "release seat")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetEvent(ctx, eventID); err != nil {
		return err
	}
	return domain.ErrLedgerUnderflow
}
