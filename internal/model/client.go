package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ContactType string

const (
	ContactWhatsapp ContactType = "whatsapp"
	ContactPhone    ContactType = "phone"
	ContactEmail    ContactType = "email"
)

func (t ContactType) Valid() bool {
	switch t {
	case ContactWhatsapp, ContactPhone, ContactEmail:
		return true
	}
	return false
}

// Contact is one way of reaching a client. Pairs are unique by exact type+value.
type Contact struct {
	Type  ContactType `json:"type"`
	Value string      `json:"value"`
}

// Client is an identity record. It is found by exact match on Whatsapp or Email only.
type Client struct {
	ID       string                       `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string                       `gorm:"type:varchar(255)" json:"name,omitempty"`
	Email    string                       `gorm:"type:varchar(255);index" json:"email,omitempty"`
	Whatsapp string                       `gorm:"type:varchar(64);index" json:"whatsapp,omitempty"`
	Phones   datatypes.JSONSlice[string]  `json:"phones"`
	Contacts datatypes.JSONSlice[Contact] `json:"contacts"`
	Notes    string                       `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (c *Client) HasPhone(number string) bool {
	for _, p := range c.Phones {
		if p == number {
			return true
		}
	}
	return false
}

func (c *Client) HasContact(t ContactType, value string) bool {
	for _, ct := range c.Contacts {
		if ct.Type == t && ct.Value == value {
			return true
		}
	}
	return false
}

// DisplayName is the label copied onto tickets as clientName.
func (c *Client) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Email != "":
		return c.Email
	default:
		return c.Whatsapp
	}
}
