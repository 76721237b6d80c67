package searchindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vibe-coding-testes/contact-hub-zen/internal/events"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
)

func TestIndexTicket(t *testing.T) {
	var got IndexTicketPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search/index/ticket" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clientID := "c-1"
	ticket := &model.Ticket{
		ID:       "t-1",
		ClientID: &clientID,
		Subject:  "Mensagem WhatsApp de Ana",
		Channel:  model.ChannelWhatsapp,
		Status:   model.TicketStatusNew,
		Messages: []model.Message{{Message: "Hello"}, {Message: "Still waiting"}},
	}
	if err := NewClient(srv.URL).IndexTicket(context.Background(), ticket); err != nil {
		t.Fatalf("IndexTicket: %v", err)
	}
	if got.TicketID != "t-1" || got.ClientID != "c-1" || got.Channel != "whatsapp" {
		t.Fatalf("payload = %+v", got)
	}
	if got.Text != "Hello\nStill waiting" {
		t.Fatalf("Text = %q", got.Text)
	}
}

func TestIndexTicketErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).IndexTicket(context.Background(), &model.Ticket{ID: "t-1"}); err == nil {
		t.Fatal("IndexTicket returned nil for a 503")
	}
}

func TestRemoveTicket(t *testing.T) {
	var path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, method = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).RemoveTicket(context.Background(), "t-1"); err != nil {
		t.Fatalf("RemoveTicket: %v", err)
	}
	if method != http.MethodDelete || path != "/search/index/ticket/t-1" {
		t.Fatalf("got %s %s", method, path)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	c := NewClient("")
	if c.Enabled() {
		t.Fatal("client without base URL is enabled")
	}
	if err := c.IndexTicket(context.Background(), &model.Ticket{ID: "t-1"}); err != nil {
		t.Fatalf("IndexTicket: %v", err)
	}
}

func TestPublishThenWait(t *testing.T) {
	var indexed, removed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			indexed.Add(1)
		case http.MethodDelete:
			removed.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Publish(context.Background(), events.New(events.TicketCreated, &model.Ticket{ID: "t-1"}, now))
	c.Publish(context.Background(), events.New(events.TicketDeleted, &model.Ticket{ID: "t-2"}, now))
	c.Wait()

	if indexed.Load() != 1 || removed.Load() != 1 {
		t.Fatalf("indexed = %d, removed = %d; want 1, 1", indexed.Load(), removed.Load())
	}
}
