package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/inbound"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
)

// Reconciler maps inbound messages onto clients and tickets. Each step is a
// separate read-then-write with no lock, so two first messages from the same
// sender racing each other can both create a client.
type Reconciler struct {
	clients *ClientDirectory
	tickets *TicketStore
}

func NewReconciler(clients *ClientDirectory, tickets *TicketStore) *Reconciler {
	return &Reconciler{clients: clients, tickets: tickets}
}

// Result reports what an ingestion touched.
type Result struct {
	Client        *model.Client
	Ticket        *model.Ticket
	ClientCreated bool
	TicketCreated bool
}

// IngestWhatsApp reconciles a non-empty WhatsApp message. The open ticket is
// matched on client identity alone, so a client has at most one open WhatsApp ticket.
func (r *Reconciler) IngestWhatsApp(ctx context.Context, msg inbound.WhatsAppMessage) (*Result, error) {
	res := &Result{}
	client, err := r.clients.FindByWhatsapp(ctx, msg.From)
	if err != nil {
		return nil, fmt.Errorf("find client: %w", err)
	}
	if client == nil {
		client, err = r.clients.CreateFromWhatsapp(ctx, msg.From, msg.ProfileName)
		if err != nil {
			return nil, err
		}
		res.ClientCreated = true
		log.Info().Str("client_id", client.ID).Str("whatsapp", msg.From).Msg("reconcile: client created")
	} else if _, err := r.clients.Enrich(ctx, client, Observation{
		Type:  model.ContactWhatsapp,
		Value: msg.From,
		Name:  msg.ProfileName,
	}); err != nil {
		return nil, err
	}
	res.Client = client

	displayName := firstNonEmpty(client.Name, msg.ProfileName, msg.From)

	ticket, err := r.tickets.FindOpenTicket(ctx, client, model.ChannelWhatsapp, msg.From)
	if err != nil {
		return nil, fmt.Errorf("find open ticket: %w", err)
	}
	if ticket == nil {
		ticket, err = r.tickets.CreateTicket(ctx, NewTicket{
			Client:         client,
			ClientName:     displayName,
			Channel:        model.ChannelWhatsapp,
			InitialMessage: msg.Body,
		})
		if err != nil {
			return nil, err
		}
		res.TicketCreated = true
		log.Info().Str("ticket_id", ticket.ID).Str("client_id", client.ID).Msg("reconcile: whatsapp ticket created")
	} else {
		if err := r.tickets.AppendMessage(ctx, ticket, msg.Body, true, AppendOptions{}); err != nil {
			return nil, err
		}
		log.Debug().Str("ticket_id", ticket.ID).Int("messages", len(ticket.Messages)).Msg("reconcile: whatsapp message appended")
	}
	res.Ticket = ticket
	return res, nil
}

// IngestEmail reconciles a non-empty email. Unlike WhatsApp the open ticket is
// matched on client and subject, so different subjects open separate tickets.
func (r *Reconciler) IngestEmail(ctx context.Context, msg inbound.EmailMessage) (*Result, error) {
	res := &Result{}
	client, err := r.clients.FindByEmail(ctx, msg.From)
	if err != nil {
		return nil, fmt.Errorf("find client: %w", err)
	}
	if client == nil {
		client, err = r.clients.CreateFromEmail(ctx, msg.From)
		if err != nil {
			return nil, err
		}
		res.ClientCreated = true
		log.Info().Str("client_id", client.ID).Str("email", msg.From).Msg("reconcile: client created")
	} else if _, err := r.clients.Enrich(ctx, client, Observation{
		Type:  model.ContactEmail,
		Value: msg.From,
		Name:  inbound.LocalPart(msg.From),
	}); err != nil {
		return nil, err
	}
	res.Client = client

	displayName := firstNonEmpty(client.Name, msg.From)
	subject := msg.Subject
	if subject == "" {
		subject = model.DefaultSubject(model.ChannelEmail, displayName)
	}

	ticket, err := r.tickets.FindOpenTicketBySubject(ctx, client, msg.From, subject, model.ChannelEmail)
	if err != nil {
		return nil, fmt.Errorf("find open ticket: %w", err)
	}
	if ticket == nil {
		ticket, err = r.tickets.CreateTicket(ctx, NewTicket{
			Client:         client,
			ClientName:     displayName,
			Subject:        subject,
			Channel:        model.ChannelEmail,
			Topic:          model.TopicSupport,
			InitialMessage: msg.Text,
		})
		if err != nil {
			return nil, err
		}
		res.TicketCreated = true
		log.Info().Str("ticket_id", ticket.ID).Str("client_id", client.ID).Msg("reconcile: email ticket created")
	} else {
		if err := r.tickets.AppendMessage(ctx, ticket, msg.Text, true, AppendOptions{}); err != nil {
			return nil, err
		}
		log.Debug().Str("ticket_id", ticket.ID).Int("messages", len(ticket.Messages)).Msg("reconcile: email message appended")
	}
	res.Ticket = ticket
	return res, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
