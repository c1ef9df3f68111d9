// Package postgres is the authoritative store: events with their occupancy
// counter, registrations, and the transactional outbox.
package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robertarktes/event-admissions/internal/clock"
	"github.com/robertarktes/event-admissions/internal/domain"
)

const (
	serializationFailureCode = "40001"
	uniqueViolationCode      = "23505"
)

type Repository struct {
	pool  *pgxpool.Pool
	clock clock.Clock
}

func NewRepository(pool *pgxpool.Pool, clk clock.Clock) *Repository {
	return &Repository{pool: pool, clock: clk}
}

// WithTx runs fn inside a SERIALIZABLE transaction. Serialization conflicts
// surface as domain.ErrSerializationFailure so callers can retry.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
			return domain.ErrSerializationFailure
		}
		return err
	}

	return tx.Commit(ctx)
}

// EnsureSchema creates the tables and the partial unique index that
// enforces at most one non-cancelled registration per participant/event.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	capacity INT NOT NULL CHECK (capacity >= 0),
	current_occupancy INT NOT NULL DEFAULT 0
		CHECK (current_occupancy >= 0 AND current_occupancy <= capacity),
	registration_deadline TIMESTAMPTZ NOT NULL,
	event_start TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('draft', 'published', 'cancelled'))
);

CREATE TABLE IF NOT EXISTS registrations (
	id UUID NOT NULL,
	code TEXT PRIMARY KEY,
	event_id UUID NOT NULL,
	participant_id UUID NOT NULL,
	status TEXT NOT NULL
		CHECK (status IN ('pending', 'confirmed', 'cancelled', 'attended', 'no-show')),
	ticket_payload TEXT NOT NULL,
	ticket_artifact BYTEA,
	issued_at TIMESTAMPTZ NOT NULL,
	contact_name TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	contact_phone TEXT NOT NULL DEFAULT '',
	checkin_at TIMESTAMPTZ,
	checkin_method TEXT,
	feedback_rating INT,
	feedback_comment TEXT,
	feedback_at TIMESTAMPTZ,
	cancel_reason TEXT,
	cancel_actor TEXT,
	cancelled_at TIMESTAMPTZ,
	origin TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS registrations_active_participant_event
	ON registrations (participant_id, event_id) WHERE status <> 'cancelled';

CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	dedupe_key TEXT NOT NULL
);
`
