package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/event-admissions/internal/clock"
	"github.com/robertarktes/event-admissions/internal/domain"
)

func openEvent(capacity int, clk clock.Clock) domain.Event {
	now := clk.Now()
	return domain.Event{
		ID:                   uuid.New(),
		Name:                 "GopherConf",
		Capacity:             capacity,
		RegistrationDeadline: now.Add(time.Hour),
		EventStart:           now.Add(48 * time.Hour),
		Status:               domain.EventPublished,
	}
}

func TestTryReserve_NoOversellUnderLoad(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	store := NewEventStore(clk)

	const capacity = 17
	const attempts = 200
	ev := openEvent(capacity, clk)
	store.Put(ev)

	var reserved, rejected atomic.Int64
	g := new(errgroup.Group)
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			err := store.TryReserve(ctx, ev.ID)
			switch {
			case err == nil:
				reserved.Add(1)
			case errors.Is(err, domain.ErrCapacityExceeded):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if reserved.Load() != capacity {
		t.Errorf("reserved = %d, want %d", reserved.Load(), capacity)
	}
	if rejected.Load() != attempts-capacity {
		t.Errorf("rejected = %d, want %d", rejected.Load(), attempts-capacity)
	}
	got, err := store.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentOccupancy != capacity {
		t.Errorf("occupancy = %d, want %d", got.CurrentOccupancy, capacity)
	}
}

func TestTryReserve_LastSeat(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Now())
	store := NewEventStore(clk)

	ev := openEvent(1, clk)
	store.Put(ev)

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- store.TryReserve(ctx, ev.ID) }()
	}
	var ok, full int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrCapacityExceeded):
			full++
		default:
			t.Fatal(err)
		}
	}
	if ok != 1 || full != 1 {
		t.Fatalf("want exactly one Reserved and one CapacityExceeded, got %d/%d", ok, full)
	}
}

func TestTryReserve_Policy(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	store := NewEventStore(clk)

	draft := openEvent(5, clk)
	draft.Status = domain.EventDraft
	store.Put(draft)
	if err := store.TryReserve(ctx, draft.ID); !errors.Is(err, domain.ErrEventNotOpen) {
		t.Errorf("draft event = %v, want ErrEventNotOpen", err)
	}

	open := openEvent(5, clk)
	store.Put(open)
	clk.Advance(time.Hour + time.Second) // one second past the deadline
	if err := store.TryReserve(ctx, open.ID); !errors.Is(err, domain.ErrDeadlinePassed) {
		t.Errorf("past deadline = %v, want ErrDeadlinePassed", err)
	}
	clk.Advance(-(time.Hour + time.Second))

	zero := openEvent(0, clk)
	store.Put(zero)
	if err := store.TryReserve(ctx, zero.ID); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("zero capacity = %v, want ErrCapacityExceeded", err)
	}

	if err := store.TryReserve(ctx, uuid.New()); !errors.Is(err, domain.ErrEventNotFound) {
		t.Errorf("unknown event = %v, want ErrEventNotFound", err)
	}
}

func TestRelease_FloorsAtZero(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Now())
	store := NewEventStore(clk)

	ev := openEvent(3, clk)
	store.Put(ev)

	if err := store.Release(ctx, ev.ID); !errors.Is(err, domain.ErrLedgerUnderflow) {
		t.Fatalf("release at zero = %v, want ErrLedgerUnderflow", err)
	}

	if err := store.TryReserve(ctx, ev.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.Release(ctx, ev.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetEvent(ctx, ev.ID)
	if got.CurrentOccupancy != 0 {
		t.Errorf("occupancy = %d, want 0", got.CurrentOccupancy)
	}
}
