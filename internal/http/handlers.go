package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/robertarktes/event-admissions/internal/admission"
	"github.com/robertarktes/event-admissions/internal/config"
	"github.com/robertarktes/event-admissions/internal/domain"
	"github.com/robertarktes/event-admissions/internal/idempotency"
	"github.com/robertarktes/event-admissions/internal/lifecycle"
	"github.com/robertarktes/event-admissions/internal/observability"
)

// RegistrationCache is the read-through cache surface; the redis adapter is
// the production implementation.
type RegistrationCache interface {
	GetRegistration(ctx context.Context, code string) (*domain.Registration, error)
	SetRegistration(ctx context.Context, reg *domain.Registration) error
	InvalidateRegistration(ctx context.Context, code string) error
}

// IdempotencyStore replays a stored response for a repeated key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*idempotency.Response, error)
	Set(ctx context.Context, key string, resp idempotency.Response) error
}

type Handlers struct {
	cfg       *config.Config
	coord     *admission.Coordinator
	lifecycle *lifecycle.Service
	cache     RegistrationCache
	idemp     IdempotencyStore
	logger    observability.Logger
}

func NewHandlers(
	cfg *config.Config,
	coord *admission.Coordinator,
	lc *lifecycle.Service,
	cache RegistrationCache,
	idemp IdempotencyStore,
	logger observability.Logger,
) *Handlers {
	return &Handlers{
		cfg:       cfg,
		coord:     coord,
		lifecycle: lc,
		cache:     cache,
		idemp:     idemp,
		logger:    logger,
	}
}

type registrationResponse struct {
	Code     string     `json:"code"`
	Status   string     `json:"status"`
	EventID  uuid.UUID  `json:"event_id"`
	IssuedAt time.Time  `json:"issued_at"`
	Payload  string     `json:"payload"`
	Artifact []byte     `json:"artifact,omitempty"`
	CheckIn  *checkInTO `json:"check_in,omitempty"`
	Feedback *feedback  `json:"feedback,omitempty"`
}

type checkInTO struct {
	At     time.Time `json:"at"`
	Method string    `json:"method"`
}

type feedback struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

func toResponse(reg *domain.Registration) registrationResponse {
	resp := registrationResponse{
		Code:     reg.Code,
		Status:   string(reg.Status),
		EventID:  reg.EventID,
		IssuedAt: reg.Ticket.IssuedAt,
		Payload:  reg.Ticket.Payload,
		Artifact: reg.Ticket.Artifact,
	}
	if reg.CheckIn != nil {
		resp.CheckIn = &checkInTO{At: reg.CheckIn.At, Method: string(reg.CheckIn.Method)}
	}
	if reg.Feedback != nil {
		resp.Feedback = &feedback{Rating: reg.Feedback.Rating, Comment: reg.Feedback.Comment}
	}
	return resp
}

func (h *Handlers) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		http.Error(w, "invalid event id", http.StatusBadRequest)
		return
	}

	var req struct {
		ParticipantID uuid.UUID `json:"participant_id"`
		Contact       struct {
			Name  string `json:"name"`
			Email string `json:"email"`
			Phone string `json:"phone"`
		} `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ParticipantID == (uuid.UUID{}) {
		http.Error(w, "participant_id is required", http.StatusBadRequest)
		return
	}

	// The replay key is scoped to the operation: a key reused by another
	// participant or another event must never replay this response.
	key := "register:" + eventID.String() + ":" + req.ParticipantID.String() + ":" + r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	contact := domain.ContactInfo{Name: req.Contact.Name, Email: req.Contact.Email, Phone: req.Contact.Phone}
	reg, err := h.coord.Register(r.Context(), req.ParticipantID, eventID, contact, "api")
	if err != nil {
		h.writeError(w, err)
		return
	}

	data, _ := json.Marshal(toResponse(reg))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	w.Write(data)

	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data}); err != nil {
		h.logger.WithError(err).Warn("failed to store idempotent response")
	}
}

func (h *Handlers) GetRegistration(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	if cached, err := h.cache.GetRegistration(r.Context(), code); err == nil && cached != nil {
		writeJSON(w, http.StatusOK, toResponse(cached))
		return
	}

	reg, err := h.lifecycle.GetByCode(r.Context(), code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.cache.SetRegistration(r.Context(), reg); err != nil {
		h.logger.WithError(err).Warn("failed to cache registration")
	}
	writeJSON(w, http.StatusOK, toResponse(reg))
}

func (h *Handlers) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req struct {
		Reason string `json:"reason"`
		Actor  string `json:"actor"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	actor := domain.ActorParticipant
	if req.Actor == string(domain.ActorOrganizer) {
		actor = domain.ActorOrganizer
	}

	reg, err := h.lifecycle.Cancel(r.Context(), code, actor, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidate(r, code)
	writeJSON(w, http.StatusOK, toResponse(reg))
}

func (h *Handlers) CheckIn(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req struct {
		Method  string `json:"method"`
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		reg *domain.Registration
		err error
	)
	if req.Payload != "" {
		reg, err = h.lifecycle.CheckInByPayload(r.Context(), req.Payload)
	} else {
		method := domain.CheckInMethod(req.Method)
		if method == "" {
			method = domain.CheckInManual
		}
		reg, err = h.lifecycle.CheckIn(r.Context(), code, method)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidate(r, reg.Code)
	writeJSON(w, http.StatusOK, toResponse(reg))
}

func (h *Handlers) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reg, err := h.lifecycle.SubmitFeedback(r.Context(), code, req.Rating, req.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.invalidate(r, code)
	writeJSON(w, http.StatusOK, toResponse(reg))
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func (h *Handlers) invalidate(r *http.Request, code string) {
	if err := h.cache.InvalidateRegistration(r.Context(), code); err != nil {
		h.logger.WithError(err).WithField("code", code).Warn("cache invalidation failed")
	}
}

// writeError maps the domain error taxonomy onto transport responses.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var dup *domain.AlreadyRegisteredError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":  "already registered",
			"code":   dup.Code,
			"status": string(dup.Status),
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrEventNotFound),
		errors.Is(err, domain.ErrRegistrationNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrSerializationFailure):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict, try again"})
	case errors.Is(err, domain.ErrEventNotOpen),
		errors.Is(err, domain.ErrDeadlinePassed),
		errors.Is(err, domain.ErrTooLateToCancel),
		errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrAlreadyCheckedIn),
		errors.Is(err, domain.ErrNotYetAttended),
		errors.Is(err, domain.ErrFeedbackAlreadySubmitted),
		errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("internal error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
