package admission_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/event-admissions/internal/adapters/memory"
	"github.com/robertarktes/event-admissions/internal/admission"
	"github.com/robertarktes/event-admissions/internal/clock"
	"github.com/robertarktes/event-admissions/internal/domain"
	"github.com/robertarktes/event-admissions/internal/observability"
	"github.com/robertarktes/event-admissions/internal/ticket"
)

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []domain.Ticket
	fail  bool
	calls chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{calls: make(chan struct{}, 16)}
}

func (n *fakeNotifier) SendTicket(ctx context.Context, contact domain.ContactInfo, tkt domain.Ticket) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	defer func() { n.calls <- struct{}{} }()
	if n.fail {
		return errors.New("smtp down")
	}
	n.sent = append(n.sent, tkt)
	return nil
}

func (n *fakeNotifier) waitForCall(t *testing.T) {
	t.Helper()
	select {
	case <-n.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was never called")
	}
}

type fakeProfiles struct {
	profiles map[uuid.UUID]domain.ContactInfo
}

func (p *fakeProfiles) GetProfile(ctx context.Context, id uuid.UUID) (domain.ContactInfo, error) {
	c, ok := p.profiles[id]
	if !ok {
		return domain.ContactInfo{}, errors.New("profile not found")
	}
	return c, nil
}

type nopAuditor struct{}

func (nopAuditor) Record(ctx context.Context, entry domain.TransitionAudit) error { return nil }

type failingStore struct {
	admission.RegistrationStore
	failCreate bool
}

func (f *failingStore) Create(ctx context.Context, reg *domain.Registration) error {
	if f.failCreate {
		return errors.New("connection reset")
	}
	return f.RegistrationStore.Create(ctx, reg)
}

type fixture struct {
	clk      *clock.Fake
	events   *memory.EventStore
	regs     *memory.RegistrationStore
	notifier *fakeNotifier
	profiles *fakeProfiles
	coord    *admission.Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	events := memory.NewEventStore(clk)
	regs := memory.NewRegistrationStore()
	regs.UseEventIndex(events)
	notifier := newFakeNotifier()
	profiles := &fakeProfiles{profiles: map[uuid.UUID]domain.ContactInfo{}}
	issuer := ticket.NewIssuer([]byte("test-signing-key-32-bytes-long!!"))
	coord := admission.NewCoordinator(
		events, regs, profiles, events, issuer, notifier,
		nopAuditor{}, clk, observability.NewLogger(),
	)
	return &fixture{clk: clk, events: events, regs: regs, notifier: notifier, profiles: profiles, coord: coord}
}

func (f *fixture) addEvent(capacity int) domain.Event {
	now := f.clk.Now()
	ev := domain.Event{
		ID:                   uuid.New(),
		Name:                 "GopherConf",
		Capacity:             capacity,
		RegistrationDeadline: now.Add(time.Hour),
		EventStart:           now.Add(72 * time.Hour),
		Status:               domain.EventPublished,
	}
	f.events.Put(ev)
	return ev
}

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(10)
	participant := uuid.New()
	contact := domain.ContactInfo{Name: "Ada", Email: "ada@example.com", Phone: "+1555"}

	reg, err := f.coord.Register(context.Background(), participant, ev.ID, contact, "api")
	if err != nil {
		t.Fatal(err)
	}
	if reg.Status != domain.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", reg.Status)
	}
	if reg.Code == "" || reg.Ticket.Payload == "" {
		t.Error("ticket not issued")
	}
	if reg.Contact != contact {
		t.Errorf("contact snapshot = %+v, want %+v", reg.Contact, contact)
	}

	got, err := f.events.GetEvent(context.Background(), ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentOccupancy != 1 {
		t.Errorf("occupancy = %d, want 1", got.CurrentOccupancy)
	}

	f.notifier.waitForCall(t)
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Code != reg.Code {
		t.Errorf("notifier got %+v", f.notifier.sent)
	}
}

func TestRegister_LastSeatConcurrent(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(1)

	var mu sync.Mutex
	var confirmed, full int
	g := new(errgroup.Group)
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := f.coord.Register(context.Background(), uuid.New(), ev.ID,
				domain.ContactInfo{Name: "x", Email: "x@example.com", Phone: "1"}, "api")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				confirmed++
			case errors.Is(err, domain.ErrCapacityExceeded):
				full++
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if confirmed != 1 || full != 1 {
		t.Fatalf("want exactly one confirmed and one CapacityExceeded, got %d/%d", confirmed, full)
	}
	got, _ := f.events.GetEvent(context.Background(), ev.ID)
	if got.CurrentOccupancy != 1 {
		t.Errorf("occupancy = %d, want 1", got.CurrentOccupancy)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(10)
	participant := uuid.New()
	contact := domain.ContactInfo{Name: "Ada", Email: "ada@example.com", Phone: "1"}

	first, err := f.coord.Register(context.Background(), participant, ev.ID, contact, "api")
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.coord.Register(context.Background(), participant, ev.ID, contact, "api")
	var dup *domain.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		t.Fatalf("second register = %v, want AlreadyRegisteredError", err)
	}
	if dup.Code != first.Code || dup.Status != domain.StatusConfirmed {
		t.Errorf("duplicate error carries %s/%s, want %s/confirmed", dup.Code, dup.Status, first.Code)
	}

	got, _ := f.events.GetEvent(context.Background(), ev.ID)
	if got.CurrentOccupancy != 1 {
		t.Errorf("occupancy = %d after duplicate attempt, want 1", got.CurrentOccupancy)
	}
}

func TestRegister_EventNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Register(context.Background(), uuid.New(), uuid.New(), domain.ContactInfo{}, "api")
	if !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("got %v, want ErrEventNotFound", err)
	}
}

func TestRegister_DeadlinePassed(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(10)

	f.clk.Advance(time.Hour + time.Second) // one second past the deadline
	_, err := f.coord.Register(context.Background(), uuid.New(), ev.ID,
		domain.ContactInfo{Email: "a@b.c"}, "api")
	if !errors.Is(err, domain.ErrDeadlinePassed) {
		t.Fatalf("got %v, want ErrDeadlinePassed", err)
	}
}

func TestRegister_CompensatesFailedPersist(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(10)

	broken := &failingStore{RegistrationStore: f.regs, failCreate: true}
	coord := admission.NewCoordinator(
		f.events, broken, f.profiles, f.events,
		ticket.NewIssuer([]byte("test-signing-key-32-bytes-long!!")),
		f.notifier, nopAuditor{}, f.clk, observability.NewLogger(),
	)

	_, err := coord.Register(context.Background(), uuid.New(), ev.ID,
		domain.ContactInfo{Email: "a@b.c"}, "api")
	if err == nil {
		t.Fatal("expected persistence failure")
	}
	got, _ := f.events.GetEvent(context.Background(), ev.ID)
	if got.CurrentOccupancy != 0 {
		t.Fatalf("occupancy = %d after compensation, want 0 (stranded seat hold)", got.CurrentOccupancy)
	}
}

func TestRegister_NotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(10)
	f.notifier.fail = true

	reg, err := f.coord.Register(context.Background(), uuid.New(), ev.ID,
		domain.ContactInfo{Email: "a@b.c"}, "api")
	if err != nil {
		t.Fatalf("register failed on notifier error: %v", err)
	}
	if reg.Status != domain.StatusConfirmed {
		t.Errorf("status = %s, want confirmed", reg.Status)
	}
	f.notifier.waitForCall(t)
}

func TestRegister_FillsContactFromProfile(t *testing.T) {
	f := newFixture(t)
	ev := f.addEvent(10)
	participant := uuid.New()
	f.profiles.profiles[participant] = domain.ContactInfo{Name: "Grace", Email: "grace@example.com", Phone: "+2555"}

	reg, err := f.coord.Register(context.Background(), participant, ev.ID,
		domain.ContactInfo{Email: "work@example.com"}, "api")
	if err != nil {
		t.Fatal(err)
	}
	want := domain.ContactInfo{Name: "Grace", Email: "work@example.com", Phone: "+2555"}
	if reg.Contact != want {
		t.Errorf("contact = %+v, want supplied email with profile gaps filled %+v", reg.Contact, want)
	}
}
