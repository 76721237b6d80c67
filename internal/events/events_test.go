package events

import (
	"context"
	"testing"
	"time"

	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
)

type recorder struct{ got []Event }

func (r *recorder) Publish(_ context.Context, ev Event) { r.got = append(r.got, ev) }

func TestNewSnapshotsTicket(t *testing.T) {
	ticket := &model.Ticket{
		ID:       "t-1",
		Subject:  "Pedido atrasado",
		Client:   &model.Client{ID: "c-1", Name: "Ana"},
		Messages: []model.Message{{Message: "oi", FromClient: true}},
	}
	ev := New(TicketUpdated, ticket, time.Now())

	ticket.Subject = "changed"
	ticket.Messages[0].Message = "changed"
	ticket.Messages = append(ticket.Messages, model.Message{Message: "second"})
	ticket.Client.Name = "changed"

	if ev.Ticket.Subject != "Pedido atrasado" {
		t.Errorf("Subject = %q, want snapshot value", ev.Ticket.Subject)
	}
	if len(ev.Ticket.Messages) != 1 || ev.Ticket.Messages[0].Message != "oi" {
		t.Errorf("Messages = %+v, want snapshot of one message", ev.Ticket.Messages)
	}
	if ev.Ticket.Client.Name != "Ana" {
		t.Errorf("Client.Name = %q, want Ana", ev.Ticket.Client.Name)
	}
}

func TestFanoutSkipsNil(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := Fanout{a, nil, b}
	f.Publish(context.Background(), New(TicketCreated, &model.Ticket{ID: "t-1"}, time.Now()))
	if len(a.got) != 1 || len(b.got) != 1 {
		t.Fatalf("got %d and %d events, want 1 each", len(a.got), len(b.got))
	}
}

func TestPayload(t *testing.T) {
	clientID := "c-1"
	ev := New(TicketMessageAdded, &model.Ticket{
		ID:       "t-1",
		ClientID: &clientID,
		Channel:  model.ChannelWhatsapp,
		Status:   model.TicketStatusNew,
		Messages: []model.Message{{Message: "Hello"}, {Message: "Still waiting"}},
	}, time.Now())

	p := Payload(ev)
	if p["event"] != "ticket.message_added" {
		t.Errorf("event = %v", p["event"])
	}
	if p["client_id"] != "c-1" {
		t.Errorf("client_id = %v", p["client_id"])
	}
	if p["message_count"] != 2 || p["last_message"] != "Still waiting" {
		t.Errorf("message_count = %v, last_message = %v", p["message_count"], p["last_message"])
	}
}
