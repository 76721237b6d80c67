package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/events"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
)

// Client pushes tickets to the search service for indexing (best-effort, never blocks the API).
type Client struct {
	baseURL    string
	httpClient *http.Client
	inflight   sync.WaitGroup
}

// NewClient returns a client. With an empty baseURL every call is a no-op.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// IndexTicketPayload is the body of POST /search/index/ticket.
type IndexTicketPayload struct {
	TicketID   string `json:"ticket_id"`
	ClientID   string `json:"client_id,omitempty"`
	ClientName string `json:"client_name"`
	Subject    string `json:"subject"`
	Topic      string `json:"topic"`
	Channel    string `json:"channel"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	LastUpdate string `json:"last_update"`
	// Text is every message body joined, for full-text search.
	Text string `json:"text"`
}

func payloadFor(t *model.Ticket) IndexTicketPayload {
	p := IndexTicketPayload{
		TicketID:   t.ID,
		ClientName: t.ClientName,
		Subject:    t.Subject,
		Topic:      t.Topic,
		Channel:    string(t.Channel),
		Status:     string(t.Status),
		Priority:   string(t.Priority),
		LastUpdate: t.LastUpdate,
	}
	if t.ClientID != nil {
		p.ClientID = *t.ClientID
	}
	var buf bytes.Buffer
	for i, m := range t.Messages {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(m.Message)
	}
	p.Text = buf.String()
	return p
}

// IndexTicket sends the ticket to the search service. Errors are logged and returned.
func (c *Client) IndexTicket(ctx context.Context, t *model.Ticket) error {
	if !c.Enabled() {
		return nil
	}
	body, err := json.Marshal(payloadFor(t))
	if err != nil {
		return fmt.Errorf("searchindex: marshal: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/search/index/ticket", body, t.ID)
}

// RemoveTicket drops a deleted ticket from the index.
func (c *Client) RemoveTicket(ctx context.Context, id string) error {
	if !c.Enabled() {
		return nil
	}
	return c.do(ctx, http.MethodDelete, c.baseURL+"/search/index/ticket/"+url.PathEscape(id), nil, id)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, id string) error {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("searchindex: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("ticket_id", id).Msg("searchindex: request")
		return fmt.Errorf("searchindex: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("ticket_id", id).Msg("searchindex: unexpected status")
		return fmt.Errorf("searchindex: status %d for ticket %s", resp.StatusCode, id)
	}
	return nil
}

// Publish indexes (or removes) the event's ticket in a separate goroutine.
func (c *Client) Publish(_ context.Context, ev events.Event) {
	if !c.Enabled() {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ev.Type == events.TicketDeleted {
			_ = c.RemoveTicket(ctx, ev.Ticket.ID)
			return
		}
		_ = c.IndexTicket(ctx, ev.Ticket)
	}()
}

// Wait blocks until every request started by Publish has finished.
func (c *Client) Wait() {
	if c != nil {
		c.inflight.Wait()
	}
}
