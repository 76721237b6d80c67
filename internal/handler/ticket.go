package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/service"
)

type TicketHandler struct {
	tickets *service.TicketStore
}

func NewTicketHandler(tickets *service.TicketStore) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// messageRequest leaves fromClient nil when absent; it then defaults to true.
type messageRequest struct {
	Message    string     `json:"message"`
	FromClient *bool      `json:"fromClient"`
	Timestamp  *time.Time `json:"timestamp"`
}

// ticketRequest is shared by create and update; absent fields stay nil.
type ticketRequest struct {
	ClientID   *string               `json:"clientId"`
	ClientName *string               `json:"clientName"`
	Subject    *string               `json:"subject"`
	Topic      *string               `json:"topic"`
	Channel    *model.Channel        `json:"channel"`
	Status     *model.TicketStatus   `json:"status"`
	Priority   *model.TicketPriority `json:"priority"`
	Messages   *[]messageRequest     `json:"messages"`
}

func (r ticketRequest) messages() []service.MessageInput {
	if r.Messages == nil {
		return nil
	}
	out := make([]service.MessageInput, 0, len(*r.Messages))
	for _, m := range *r.Messages {
		msg := service.MessageInput{Message: m.Message, FromClient: m.FromClient}
		if m.Timestamp != nil {
			msg.Timestamp = *m.Timestamp
		}
		out = append(out, msg)
	}
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req ticketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	t, err := h.tickets.Create(c.Request.Context(), service.TicketInput{
		ClientID:   deref(req.ClientID),
		ClientName: deref(req.ClientName),
		Subject:    deref(req.Subject),
		Channel:    deref(req.Channel),
		Status:     deref(req.Status),
		Priority:   deref(req.Priority),
		Topic:      deref(req.Topic),
		Messages:   req.messages(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TicketHandler) Get(c *gin.Context) {
	t, err := h.tickets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// List accepts clientId, status, channel, priority, limit and offset. The
// unpaginated total goes out in X-Total-Count.
func (h *TicketHandler) List(c *gin.Context) {
	f := service.ListFilter{
		ClientID: c.Query("clientId"),
		Status:   model.TicketStatus(c.Query("status")),
		Channel:  model.Channel(c.Query("channel")),
		Priority: model.TicketPriority(c.Query("priority")),
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			f.Offset = parsed
		}
	}

	items, total, err := h.tickets.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.JSON(http.StatusOK, items)
}

func (h *TicketHandler) Update(c *gin.Context) {
	var req ticketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	in := service.TicketUpdate{
		ClientID:   req.ClientID,
		ClientName: req.ClientName,
		Subject:    req.Subject,
		Topic:      req.Topic,
		Channel:    req.Channel,
		Status:     req.Status,
		Priority:   req.Priority,
	}
	if req.Messages != nil {
		msgs := req.messages()
		in.Messages = &msgs
	}
	t, err := h.tickets.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Delete(c *gin.Context) {
	if err := h.tickets.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addMessageRequest struct {
	Message    string `json:"message"`
	FromClient *bool  `json:"fromClient"`
	Topic      string `json:"topic"`
}

func (h *TicketHandler) AddMessage(c *gin.Context) {
	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	fromClient := req.FromClient == nil || *req.FromClient
	t, err := h.tickets.AddMessage(c.Request.Context(), c.Param("id"), req.Message, fromClient, req.Topic)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type statusRequest struct {
	Status model.TicketStatus `json:"status"`
}

func (h *TicketHandler) PatchStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	t, err := h.tickets.PatchStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
