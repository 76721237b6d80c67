package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/errs"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/model"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/service"
)

type ClientHandler struct {
	clients *service.ClientDirectory
	tickets *service.TicketStore
}

func NewClientHandler(clients *service.ClientDirectory, tickets *service.TicketStore) *ClientHandler {
	return &ClientHandler{clients: clients, tickets: tickets}
}

type clientRequest struct {
	Name     *string          `json:"name"`
	Email    *string          `json:"email"`
	Whatsapp *string          `json:"whatsapp"`
	Phones   *[]string        `json:"phones"`
	Contacts *[]model.Contact `json:"contacts"`
	Notes    *string          `json:"notes"`
}

func (r clientRequest) input() service.ClientInput {
	return service.ClientInput{
		Name:     r.Name,
		Email:    r.Email,
		Whatsapp: r.Whatsapp,
		Phones:   r.Phones,
		Contacts: r.Contacts,
		Notes:    r.Notes,
	}
}

// respondClientError answers 404 for a missing client in the URL.
func respondClientError(c *gin.Context, err error) {
	if errors.Is(err, errs.ErrClientNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
		return
	}
	respondError(c, err)
}

func (h *ClientHandler) List(c *gin.Context) {
	items, err := h.clients.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []model.Client{}
	}
	c.JSON(http.StatusOK, items)
}

func (h *ClientHandler) Get(c *gin.Context) {
	cl, err := h.clients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (h *ClientHandler) Create(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	cl, err := h.clients.Create(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cl)
}

func (h *ClientHandler) Update(c *gin.Context) {
	var req clientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	cl, err := h.clients.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		respondClientError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (h *ClientHandler) Delete(c *gin.Context) {
	if err := h.clients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondClientError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Tickets lists the client's history, including tickets opened before the client existed.
func (h *ClientHandler) Tickets(c *gin.Context) {
	cl, err := h.clients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondClientError(c, err)
		return
	}
	items, err := h.tickets.ListByClient(c.Request.Context(), cl)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
