package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Channel string

const (
	ChannelWhatsapp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelChat     Channel = "chat"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsapp, ChannelEmail, ChannelChat:
		return true
	}
	return false
}

type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "novo"
	TicketStatusInProgress TicketStatus = "em_andamento"
	TicketStatusResolved   TicketStatus = "resolvido"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "baixa"
	TicketPriorityMedium TicketPriority = "media"
	TicketPriorityHigh   TicketPriority = "alta"
)

func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

const (
	TopicGeneral = "geral"
	TopicSupport = "suporte"
)

// DefaultTopic is the topic a freshly created ticket gets on the channel.
func DefaultTopic(ch Channel) string {
	if ch == ChannelEmail {
		return TopicSupport
	}
	return TopicGeneral
}

// IsPlaceholderTopic reports topics that were left empty or set to a channel name.
func IsPlaceholderTopic(topic string) bool {
	switch topic {
	case "", string(ChannelWhatsapp), string(ChannelEmail), string(ChannelChat):
		return true
	}
	return false
}

func DefaultSubject(ch Channel, displayName string) string {
	switch ch {
	case ChannelWhatsapp:
		return fmt.Sprintf("Mensagem WhatsApp de %s", displayName)
	case ChannelEmail:
		return fmt.Sprintf("Mensagem de e-mail de %s", displayName)
	default:
		return fmt.Sprintf("Conversa de %s", displayName)
	}
}

// LastUpdateLayout matches the millisecond ISO-8601 form the dashboard sorts on.
const LastUpdateLayout = "2006-01-02T15:04:05.000Z"

func FormatLastUpdate(t time.Time) string {
	return t.UTC().Format(LastUpdateLayout)
}

type Ticket struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID   *string        `gorm:"type:uuid;index:idx_tickets_open_lookup,priority:1" json:"clientId,omitempty"`
	Client     *Client        `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ClientName string         `gorm:"type:varchar(255);index" json:"clientName"`
	Subject    string         `gorm:"type:varchar(512);not null" json:"subject"`
	Topic      string         `gorm:"type:varchar(64);not null" json:"topic"`
	Channel    Channel        `gorm:"type:varchar(16);not null;index:idx_tickets_open_lookup,priority:2" json:"channel"`
	Status     TicketStatus   `gorm:"type:varchar(32);not null;index:idx_tickets_open_lookup,priority:3" json:"status"`
	Priority   TicketPriority `gorm:"type:varchar(16);not null" json:"priority"`
	LastUpdate string         `gorm:"type:varchar(32)" json:"lastUpdate"`
	Messages   []Message      `gorm:"foreignKey:TicketID" json:"messages"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// IsOpen reports whether inbound messages may still be appended to the ticket.
func (t *Ticket) IsOpen() bool {
	return t.Status != TicketStatusResolved
}

// AttachClient points the ticket at c and refreshes the denormalized name.
func (t *Ticket) AttachClient(c *Client) {
	id := c.ID
	t.ClientID = &id
	t.Client = c
	t.ClientName = c.DisplayName()
}

type Message struct {
	ID         uint64    `gorm:"primaryKey" json:"id,string"`
	TicketID   string    `gorm:"type:uuid;not null;index" json:"-"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
	FromClient bool      `gorm:"not null" json:"fromClient"`
}

func (Message) TableName() string {
	return "ticket_messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return nil
}
