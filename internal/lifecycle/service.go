// Package lifecycle advances a registration through its state machine:
// cancellation, check-in, feedback, and the post-event no-show sweep.
package lifecycle

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/robertarktes/event-admissions/internal/clock"
	"github.com/robertarktes/event-admissions/internal/domain"
	"github.com/robertarktes/event-admissions/internal/observability"
	"github.com/robertarktes/event-admissions/internal/ticket"
)

// RegistrationStore is the lifecycle's view of persistence. Update persists
// the status transition and its side data in one write, guarded by the
// status the caller read; a concurrent transition surfaces as the matching
// conflict error instead of a lost update.
type RegistrationStore interface {
	GetByCode(ctx context.Context, code string) (*domain.Registration, error)
	Update(ctx context.Context, reg *domain.Registration, from domain.Status) error
	ListNoShowCandidates(ctx context.Context, startedBefore time.Time) ([]*domain.Registration, error)
}

type EventStore interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

// SeatReleaser frees the cancelled registration's seat.
type SeatReleaser interface {
	Release(ctx context.Context, eventID uuid.UUID) error
}

type Auditor interface {
	Record(ctx context.Context, entry domain.TransitionAudit) error
}

// TicketVerifier resolves a scanned payload back to its claims and renders
// replacement artifacts.
type TicketVerifier interface {
	Verify(payload string) (*ticket.Claims, error)
}

type Service struct {
	registrations RegistrationStore
	events        EventStore
	ledger        SeatReleaser
	verifier      TicketVerifier
	auditor       Auditor
	clock         clock.Clock
	logger        observability.Logger
	cancelWindow  time.Duration
}

func NewService(
	registrations RegistrationStore,
	events EventStore,
	ledger SeatReleaser,
	verifier TicketVerifier,
	auditor Auditor,
	clk clock.Clock,
	logger observability.Logger,
	cancelWindow time.Duration,
) *Service {
	return &Service{
		registrations: registrations,
		events:        events,
		ledger:        ledger,
		verifier:      verifier,
		auditor:       auditor,
		clock:         clk,
		logger:        logger,
		cancelWindow:  cancelWindow,
	}
}

// Cancel transitions a registration to cancelled and releases its seat.
// Participant-initiated cancellations are rejected inside the configured
// window before event start.
func (s *Service) Cancel(ctx context.Context, code string, actor domain.Actor, reason string) (*domain.Registration, error) {
	reg, err := s.registrations.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	ev, err := s.events.GetEvent(ctx, reg.EventID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch event for cancellation")
	}

	now := s.clock.Now()
	from := reg.Status
	if err := reg.Cancel(actor, reason, now, ev.EventStart, s.cancelWindow); err != nil {
		observability.CancellationsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err := s.registrations.Update(ctx, reg, from); err != nil {
		if errors.Is(err, domain.ErrAlreadyCancelled) || errors.Is(err, domain.ErrAlreadyCheckedIn) || errors.Is(err, domain.ErrInvalidTransition) {
			observability.CancellationsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		return nil, errors.Wrap(err, "persist cancellation")
	}

	// The status flip is durable; the seat must come back. A failed
	// release here is an anomaly the occupancy repair can reconcile,
	// never a reason to resurrect the registration.
	if err := s.ledger.Release(ctx, reg.EventID); err != nil {
		observability.LedgerAnomalies.Inc()
		s.logger.WithError(err).WithField("code", code).Error("seat release failed after cancellation")
	}

	observability.CancellationsTotal.WithLabelValues("cancelled").Inc()
	s.audit(ctx, reg, from, domain.StatusCancelled, actor, reason)
	return reg, nil
}

// CheckIn records attendance for a registration code. Repeat calls fail
// with ErrAlreadyCheckedIn and never touch the original record.
func (s *Service) CheckIn(ctx context.Context, code string, method domain.CheckInMethod) (*domain.Registration, error) {
	reg, err := s.registrations.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	from := reg.Status
	if err := reg.RecordCheckIn(method, s.clock.Now()); err != nil {
		observability.CheckInsTotal.WithLabelValues(string(method), "rejected").Inc()
		return nil, err
	}
	if err := s.registrations.Update(ctx, reg, from); err != nil {
		if errors.Is(err, domain.ErrAlreadyCheckedIn) || errors.Is(err, domain.ErrAlreadyCancelled) || errors.Is(err, domain.ErrInvalidTransition) {
			observability.CheckInsTotal.WithLabelValues(string(method), "rejected").Inc()
			return nil, err
		}
		return nil, errors.Wrap(err, "persist check-in")
	}

	observability.CheckInsTotal.WithLabelValues(string(method), "attended").Inc()
	s.audit(ctx, reg, from, domain.StatusAttended, domain.ActorOrganizer, "")
	return reg, nil
}

// CheckInByPayload verifies a scanned ticket payload and checks in the
// registration it names.
func (s *Service) CheckInByPayload(ctx context.Context, payload string) (*domain.Registration, error) {
	claims, err := s.verifier.Verify(payload)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "verify ticket payload: %v", err)
	}
	return s.CheckIn(ctx, claims.Code(), domain.CheckInQRScan)
}

// SubmitFeedback attaches feedback to an attended registration, once.
func (s *Service) SubmitFeedback(ctx context.Context, code string, rating int, comment string) (*domain.Registration, error) {
	reg, err := s.registrations.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := reg.AttachFeedback(rating, comment, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.registrations.Update(ctx, reg, reg.Status); err != nil {
		return nil, errors.Wrap(err, "persist feedback")
	}
	return reg, nil
}

// GetByCode fetches a registration. A missing artifact is re-rendered from
// the stored payload; rendering remains best-effort.
func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Registration, error) {
	reg, err := s.registrations.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(reg.Ticket.Artifact) == 0 && reg.Ticket.Payload != "" {
		artifact, rerr := ticket.Render(reg.Ticket.Payload)
		if rerr != nil {
			s.logger.WithError(rerr).WithField("code", code).Warn("artifact re-render failed")
			return reg, nil
		}
		reg.Ticket.Artifact = artifact
		if uerr := s.registrations.Update(ctx, reg, reg.Status); uerr != nil {
			s.logger.WithError(uerr).WithField("code", code).Warn("could not store re-rendered artifact")
		}
	}
	return reg, nil
}

// SweepNoShows marks confirmed registrations of events that started more
// than grace ago as no-show. Returns the number of registrations swept.
func (s *Service) SweepNoShows(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-grace)
	candidates, err := s.registrations.ListNoShowCandidates(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "list no-show candidates")
	}

	swept := 0
	for _, reg := range candidates {
		from := reg.Status
		if err := reg.MarkNoShow(); err != nil {
			continue
		}
		if err := s.registrations.Update(ctx, reg, from); err != nil {
			// A check-in that won the race is fine; anything else is worth a log line.
			if !errors.Is(err, domain.ErrAlreadyCheckedIn) && !errors.Is(err, domain.ErrAlreadyCancelled) {
				s.logger.WithError(err).WithField("code", reg.Code).Error("failed to persist no-show")
			}
			continue
		}
		s.audit(ctx, reg, from, domain.StatusNoShow, domain.ActorSystem, "post-event sweep")
		swept++
	}
	return swept, nil
}

func (s *Service) audit(ctx context.Context, reg *domain.Registration, from, to domain.Status, actor domain.Actor, reason string) {
	entry := domain.TransitionAudit{
		RegistrationCode: reg.Code,
		EventID:          reg.EventID,
		ParticipantID:    reg.ParticipantID,
		From:             from,
		To:               to,
		Actor:            actor,
		Reason:           reason,
		At:               s.clock.Now(),
	}
	if err := s.auditor.Record(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("code", reg.Code).Warn("audit append failed")
	}
}
