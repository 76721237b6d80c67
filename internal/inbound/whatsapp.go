// Package inbound turns loosely shaped provider payloads into strict messages
// before any reconciliation runs. Unknown shapes are handled here and nowhere else.
package inbound

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vibe-coding-testes/contact-hub-zen/internal/errs"
)

const whatsappPrefix = "whatsapp:"

var ErrMissingWhatsAppFields = fmt.Errorf("%w: sender and body are required", errs.ErrValidation)

// WhatsAppPayload is the WhatsApp webhook body as posted, form or JSON. Each
// value has the provider's field name plus the lower-case variants some gateways send.
type WhatsAppPayload struct {
	From       string `form:"From" json:"From"`
	FromLower  string `form:"from" json:"from"`
	Sender     string `form:"sender" json:"sender"`
	Body       string `form:"Body" json:"Body"`
	BodyLower  string `form:"body" json:"body"`
	Message    string `form:"message" json:"message"`
	Text       string `form:"text" json:"text"`
	To         string `form:"To" json:"To"`
	ToLower    string `form:"to" json:"to"`
	MessageSid string `form:"MessageSid" json:"MessageSid"`
	// SmsMessageSid is sent alongside MessageSid by older provider accounts.
	SmsMessageSid   string       `form:"SmsMessageSid" json:"SmsMessageSid"`
	MessageID       string       `form:"messageId" json:"messageId"`
	ProfileName     string       `form:"ProfileName" json:"ProfileName"`
	ChannelMetadata MetadataBlob `form:"ChannelMetadata" json:"ChannelMetadata"`
}

// MetadataBlob holds ChannelMetadata, which the provider sends as a JSON
// document inside a string. Any non-string JSON value decodes as empty.
type MetadataBlob string

func (b *MetadataBlob) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*b = ""
		return nil
	}
	*b = MetadataBlob(s)
	return nil
}

// WhatsAppMessage is a normalized inbound WhatsApp message.
type WhatsAppMessage struct {
	// From is the bare sender number, channel prefix removed.
	From string
	To   string
	// Body is trimmed; an empty Body means the message is dropped.
	Body        string
	ProfileName string
	// MessageSID is the provider's message id, used to drop redelivered webhooks.
	MessageSID string
}

func (m WhatsAppMessage) Empty() bool {
	return m.Body == ""
}

// ParseWhatsApp fails with ErrMissingWhatsAppFields when the sender or body is
// missing; a whitespace-only body is not an error.
func ParseWhatsApp(p WhatsAppPayload) (WhatsAppMessage, error) {
	from := StripChannelPrefix(firstNonEmpty(p.From, p.FromLower, p.Sender))
	body := firstNonEmpty(p.Body, p.BodyLower, p.Message, p.Text)
	if from == "" || body == "" {
		return WhatsAppMessage{}, ErrMissingWhatsAppFields
	}
	profile := p.ProfileName
	if profile == "" {
		profile = profileNameFromMetadata(string(p.ChannelMetadata))
	}
	return WhatsAppMessage{
		From:        from,
		To:          StripChannelPrefix(firstNonEmpty(p.To, p.ToLower)),
		Body:        strings.TrimSpace(body),
		ProfileName: strings.TrimSpace(profile),
		MessageSID:  firstNonEmpty(p.MessageSid, p.SmsMessageSid, p.MessageID),
	}, nil
}

// StripChannelPrefix removes the first "whatsapp:" marker from an address.
func StripChannelPrefix(addr string) string {
	return strings.TrimSpace(strings.Replace(addr, whatsappPrefix, "", 1))
}

type channelMetadata struct {
	Data struct {
		Context struct {
			ProfileName string `json:"ProfileName"`
		} `json:"context"`
	} `json:"data"`
}

// profileNameFromMetadata digs the display name out of the ChannelMetadata blob.
// Unparseable metadata counts as absent.
func profileNameFromMetadata(raw string) string {
	if raw == "" {
		return ""
	}
	var md channelMetadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return ""
	}
	return md.Data.Context.ProfileName
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
