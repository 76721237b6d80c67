// Package events fans ticket changes out to side channels (Kafka, search, live dashboards).
package events

import (
	"context"
	"time"

	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
)

type Type string

const (
	TicketCreated      Type = "ticket.created"
	TicketUpdated      Type = "ticket.updated"
	TicketMessageAdded Type = "ticket.message_added"
	TicketDeleted      Type = "ticket.deleted"
)

type Event struct {
	Type   Type          `json:"event"`
	Ticket *model.Ticket `json:"ticket"`
	At     time.Time     `json:"at"`
}

// New builds an event over a copy of t, so publishers running in other
// goroutines never observe later mutations of the caller's ticket.
func New(typ Type, t *model.Ticket, at time.Time) Event {
	snap := *t
	snap.Messages = append([]model.Message(nil), t.Messages...)
	if t.Client != nil {
		c := *t.Client
		snap.Client = &c
	}
	return Event{Type: typ, Ticket: &snap, At: at}
}

// Publisher must not block the caller for longer than it takes to hand the event off.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Fanout publishes to every non-nil publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

type Discard struct{}

func (Discard) Publish(context.Context, Event) {}

// Payload is the flat map shape shared by the Kafka and search-index consumers.
func Payload(ev Event) map[string]interface{} {
	t := ev.Ticket
	out := map[string]interface{}{
		"event":         string(ev.Type),
		"ticket_id":     t.ID,
		"client_name":   t.ClientName,
		"subject":       t.Subject,
		"topic":         t.Topic,
		"channel":       string(t.Channel),
		"status":        string(t.Status),
		"priority":      string(t.Priority),
		"last_update":   t.LastUpdate,
		"message_count": len(t.Messages),
	}
	if t.ClientID != nil {
		out["client_id"] = *t.ClientID
	}
	if n := len(t.Messages); n > 0 {
		out["last_message"] = t.Messages[n-1].Message
	}
	return out
}
