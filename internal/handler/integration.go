package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/errs"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/idempotency"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/inbound"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/messaging"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/service"
)

// Webhook responses are plain text; the provider only looks at the status code.
const (
	webhookOK         = "OK"
	webhookIncomplete = "Dados incompletos"
	webhookFailed     = "Erro interno"
)

type IntegrationHandler struct {
	reconciler *service.Reconciler
	tickets    *service.TicketStore
	sender     messaging.Sender
	dedupe     idempotency.Guard
}

// NewIntegrationHandler accepts a nil dedupe guard, which disables retry detection.
func NewIntegrationHandler(rec *service.Reconciler, tickets *service.TicketStore, sender messaging.Sender, dedupe idempotency.Guard) *IntegrationHandler {
	if sender == nil {
		sender = messaging.Unconfigured{}
	}
	return &IntegrationHandler{reconciler: rec, tickets: tickets, sender: sender, dedupe: dedupe}
}

// WhatsAppWebhook ingests one inbound WhatsApp message (form or JSON).
func (h *IntegrationHandler) WhatsAppWebhook(c *gin.Context) {
	var payload inbound.WhatsAppPayload
	if err := c.ShouldBind(&payload); err != nil {
		log.Warn().Err(err).Msg("whatsapp webhook: unreadable body")
		c.String(http.StatusBadRequest, webhookIncomplete)
		return
	}
	msg, err := inbound.ParseWhatsApp(payload)
	if err != nil {
		c.String(http.StatusBadRequest, webhookIncomplete)
		return
	}
	if msg.Empty() {
		log.Debug().Str("from", msg.From).Msg("whatsapp webhook: empty body ignored")
		c.String(http.StatusOK, webhookOK)
		return
	}
	ctx := c.Request.Context()
	if !h.firstSeen(ctx, msg.MessageSID) {
		log.Info().Str("sid", msg.MessageSID).Msg("whatsapp webhook: duplicate delivery ignored")
		c.String(http.StatusOK, webhookOK)
		return
	}

	res, err := h.reconciler.IngestWhatsApp(ctx, msg)
	if err != nil {
		h.forget(ctx, msg.MessageSID)
		log.Error().Err(err).Str("from", msg.From).Msg("whatsapp webhook: ingestion failed")
		c.String(http.StatusInternalServerError, webhookFailed)
		return
	}
	log.Info().
		Str("ticket_id", res.Ticket.ID).
		Str("client_id", res.Client.ID).
		Bool("new_ticket", res.TicketCreated).
		Msg("whatsapp webhook: message ingested")
	c.String(http.StatusOK, webhookOK)
}

// firstSeen fails open when the guard errors.
func (h *IntegrationHandler) firstSeen(ctx context.Context, sid string) bool {
	if h.dedupe == nil || sid == "" {
		return true
	}
	first, err := h.dedupe.FirstSeen(ctx, sid)
	if err != nil {
		log.Warn().Err(err).Msg("whatsapp webhook: dedupe unavailable")
	}
	return first
}

func (h *IntegrationHandler) forget(ctx context.Context, sid string) {
	if h.dedupe == nil || sid == "" {
		return
	}
	if err := h.dedupe.Forget(ctx, sid); err != nil {
		log.Warn().Err(err).Str("sid", sid).Msg("whatsapp webhook: could not clear dedupe key")
	}
}

// EmailWebhook ingests one inbound email as {from, subject, text}.
func (h *IntegrationHandler) EmailWebhook(c *gin.Context) {
	var payload inbound.EmailPayload
	if err := c.ShouldBind(&payload); err != nil {
		log.Warn().Err(err).Msg("email webhook: unreadable body")
		c.String(http.StatusBadRequest, webhookIncomplete)
		return
	}
	msg, err := inbound.ParseEmail(payload)
	if err != nil {
		c.String(http.StatusBadRequest, webhookIncomplete)
		return
	}
	if msg.Empty() {
		c.String(http.StatusOK, webhookOK)
		return
	}
	res, err := h.reconciler.IngestEmail(c.Request.Context(), msg)
	if err != nil {
		log.Error().Err(err).Str("from", msg.From).Msg("email webhook: ingestion failed")
		c.String(http.StatusInternalServerError, webhookFailed)
		return
	}
	log.Info().
		Str("ticket_id", res.Ticket.ID).
		Str("client_id", res.Client.ID).
		Bool("new_ticket", res.TicketCreated).
		Msg("email webhook: message ingested")
	c.String(http.StatusOK, webhookOK)
}

type sendRequest struct {
	To       string `json:"to"`
	Message  string `json:"message"`
	TicketID string `json:"ticketId"`
}

// Send delivers an agent reply over WhatsApp. With ticketId the reply is also
// recorded on that ticket as an agent message.
func (h *IntegrationHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Campos 'to' e 'message' são obrigatórios"})
		return
	}
	ctx := c.Request.Context()
	if req.TicketID != "" {
		if _, err := h.tickets.Get(ctx, req.TicketID); err != nil {
			respondError(c, err)
			return
		}
	}

	sid, err := h.sender.Send(ctx, req.To, req.Message)
	switch {
	case errors.Is(err, errs.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Twilio não configurado"})
		return
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error().Err(err).Str("to", req.To).Msg("send: delivery failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao enviar mensagem"})
		return
	}

	if req.TicketID != "" {
		if _, err := h.tickets.AddMessage(ctx, req.TicketID, req.Message, false, ""); err != nil {
			log.Warn().Err(err).Str("ticket_id", req.TicketID).Str("sid", sid).Msg("send: delivered but not recorded on ticket")
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messageId": sid})
}
