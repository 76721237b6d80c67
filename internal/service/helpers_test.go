package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vibe-coding-testes/contact-hub-zen/internal/events"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/testutil"
	"gorm.io/gorm"
)

// fakeClock advances one second on every read so ordering by time is deterministic.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	clock   *fakeClock
	events  *recorder
	clients *ClientDirectory
	tickets *TicketStore
	rec     *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:     testutil.OpenDB(t),
		clock:  newFakeClock(),
		events: &recorder{},
	}
	f.clients = NewClientDirectory(f.db)
	f.tickets = NewTicketStore(f.db, f.events, WithClock(f.clock.Now))
	f.rec = NewReconciler(f.clients, f.tickets)
	return f
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
