// Package admission orchestrates a registration request end to end:
// eligibility, seat reservation, ticket issuance, persistence, and the
// best-effort ticket delivery.
package admission

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/robertarktes/event-admissions/internal/clock"
	"github.com/robertarktes/event-admissions/internal/domain"
	"github.com/robertarktes/event-admissions/internal/observability"
)

const notifyTimeout = 10 * time.Second

type Coordinator struct {
	events        EventStore
	registrations RegistrationStore
	profiles      ProfileStore
	ledger        Ledger
	issuer        Issuer
	notifier      Notifier
	auditor       Auditor
	clock         clock.Clock
	logger        observability.Logger
}

func NewCoordinator(
	events EventStore,
	registrations RegistrationStore,
	profiles ProfileStore,
	ledger Ledger,
	issuer Issuer,
	notifier Notifier,
	auditor Auditor,
	clk clock.Clock,
	logger observability.Logger,
) *Coordinator {
	return &Coordinator{
		events:        events,
		registrations: registrations,
		profiles:      profiles,
		ledger:        ledger,
		issuer:        issuer,
		notifier:      notifier,
		auditor:       auditor,
		clock:         clk,
		logger:        logger,
	}
}

// Register admits a participant to an event. On success the returned
// registration is confirmed and carries its issued ticket. Admission errors
// (ErrEventNotFound, ErrAlreadyRegistered, ErrCapacityExceeded,
// ErrDeadlinePassed, ErrEventNotOpen) are returned as-is for the transport
// layer to map. A persistence failure after a successful reservation
// releases the seat before the error is returned.
func (c *Coordinator) Register(ctx context.Context, participantID, eventID uuid.UUID, contact domain.ContactInfo, origin string) (*domain.Registration, error) {
	timer := prometheus.NewTimer(observability.AdmissionTxDuration)
	defer timer.ObserveDuration()

	if _, err := c.events.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			observability.AdmissionsTotal.WithLabelValues("event_not_found").Inc()
			return nil, domain.ErrEventNotFound
		}
		return nil, errors.Wrap(err, "fetch event")
	}

	existing, err := c.registrations.FindActive(ctx, participantID, eventID)
	if err != nil && !errors.Is(err, domain.ErrRegistrationNotFound) {
		return nil, errors.Wrap(err, "check existing registration")
	}
	if existing != nil {
		observability.AdmissionsTotal.WithLabelValues("already_registered").Inc()
		return nil, &domain.AlreadyRegisteredError{Code: existing.Code, Status: existing.Status}
	}

	if err := c.ledger.TryReserve(ctx, eventID); err != nil {
		observability.AdmissionsTotal.WithLabelValues(reserveOutcome(err)).Inc()
		return nil, err
	}

	// Everything below holds a seat; any failure must give it back.
	reg, err := c.admit(ctx, participantID, eventID, contact, origin)
	if err != nil {
		c.compensate(ctx, eventID)
		return nil, err
	}

	observability.AdmissionsTotal.WithLabelValues("confirmed").Inc()
	c.audit(ctx, reg, "", domain.StatusConfirmed, domain.ActorParticipant, "")
	c.notifyAsync(reg.Contact, reg.Ticket)
	return reg, nil
}

func (c *Coordinator) admit(ctx context.Context, participantID, eventID uuid.UUID, contact domain.ContactInfo, origin string) (*domain.Registration, error) {
	now := c.clock.Now()
	contact = c.fillContact(ctx, participantID, contact)

	tkt, err := c.issuer.Issue(eventID, participantID, now)
	if err != nil {
		return nil, errors.Wrap(err, "issue ticket")
	}

	reg := &domain.Registration{
		ID:            uuid.New(),
		Code:          tkt.Code,
		EventID:       eventID,
		ParticipantID: participantID,
		Status:        domain.StatusConfirmed,
		Ticket:        tkt,
		Contact:       contact,
		Origin:        origin,
		CreatedAt:     now,
	}

	if err := c.registrations.Create(ctx, reg); err != nil {
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			// Lost a race with a concurrent request from the same
			// participant. Surface the winner's code.
			if winner, ferr := c.registrations.FindActive(ctx, participantID, eventID); ferr == nil {
				observability.AdmissionsTotal.WithLabelValues("already_registered").Inc()
				return nil, &domain.AlreadyRegisteredError{Code: winner.Code, Status: winner.Status}
			}
			return nil, domain.ErrAlreadyRegistered
		}
		return nil, errors.Wrap(err, "persist registration")
	}
	return reg, nil
}

// compensate releases a reserved seat after a failed admit. Failure to
// release is an anomaly: it is logged and counted, never swallowed quietly.
func (c *Coordinator) compensate(ctx context.Context, eventID uuid.UUID) {
	observability.CompensationsTotal.Inc()
	if err := c.ledger.Release(ctx, eventID); err != nil {
		observability.LedgerAnomalies.Inc()
		c.logger.WithError(err).WithField("event_id", eventID).Error("failed to release seat after failed admission")
	}
}

func (c *Coordinator) fillContact(ctx context.Context, participantID uuid.UUID, contact domain.ContactInfo) domain.ContactInfo {
	if contact.Name != "" && contact.Email != "" && contact.Phone != "" {
		return contact
	}
	profile, err := c.profiles.GetProfile(ctx, participantID)
	if err != nil {
		c.logger.WithError(err).WithField("participant_id", participantID).Warn("profile lookup failed, using supplied contact info")
		return contact
	}
	if contact.Name == "" {
		contact.Name = profile.Name
	}
	if contact.Email == "" {
		contact.Email = profile.Email
	}
	if contact.Phone == "" {
		contact.Phone = profile.Phone
	}
	return contact
}

func (c *Coordinator) audit(ctx context.Context, reg *domain.Registration, from, to domain.Status, actor domain.Actor, reason string) {
	entry := domain.TransitionAudit{
		RegistrationCode: reg.Code,
		EventID:          reg.EventID,
		ParticipantID:    reg.ParticipantID,
		From:             from,
		To:               to,
		Actor:            actor,
		Reason:           reason,
		At:               c.clock.Now(),
	}
	if err := c.auditor.Record(ctx, entry); err != nil {
		c.logger.WithError(err).WithField("code", reg.Code).Warn("audit append failed")
	}
}

// notifyAsync delivers the ticket off the request path. The registration is
// already durable; delivery failure is advisory only.
func (c *Coordinator) notifyAsync(contact domain.ContactInfo, tkt domain.Ticket) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := c.notifier.SendTicket(ctx, contact, tkt); err != nil {
			observability.NotifierFailures.Inc()
			c.logger.WithError(err).WithField("code", tkt.Code).Warn("ticket delivery failed")
		}
	}()
}

func reserveOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, domain.ErrDeadlinePassed):
		return "deadline_passed"
	case errors.Is(err, domain.ErrEventNotOpen):
		return "event_not_open"
	case errors.Is(err, domain.ErrEventNotFound):
		return "event_not_found"
	default:
		return "reserve_error"
	}
}
