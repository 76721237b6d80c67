package inbound

import (
	"fmt"
	"strings"

	"github.com/vibe-coding-testes/contact-hub-zen/internal/errs"
)

var ErrMissingEmailFields = fmt.Errorf("%w: from and text are required", errs.ErrValidation)

// EmailPayload is the email webhook body as posted by the mail gateway.
type EmailPayload struct {
	From         string `form:"from" json:"from"`
	FromUpper    string `form:"From" json:"From"`
	Sender       string `form:"sender" json:"sender"`
	Subject      string `form:"subject" json:"subject"`
	SubjectUpper string `form:"Subject" json:"Subject"`
	Text         string `form:"text" json:"text"`
	TextUpper    string `form:"Text" json:"Text"`
	Body         string `form:"body" json:"body"`
	TextBody     string `form:"TextBody" json:"TextBody"`
}

// EmailMessage is a normalized inbound email.
type EmailMessage struct {
	// From is lower-cased and trimmed.
	From    string
	Subject string
	Text    string
}

func (m EmailMessage) Empty() bool {
	return m.Text == ""
}

func ParseEmail(p EmailPayload) (EmailMessage, error) {
	from := strings.ToLower(strings.TrimSpace(firstNonEmpty(p.From, p.FromUpper, p.Sender)))
	text := firstNonEmpty(p.Text, p.TextUpper, p.Body, p.TextBody)
	if from == "" || text == "" {
		return EmailMessage{}, ErrMissingEmailFields
	}
	return EmailMessage{
		From:    from,
		Subject: strings.TrimSpace(firstNonEmpty(p.Subject, p.SubjectUpper)),
		Text:    strings.TrimSpace(text),
	}, nil
}

// LocalPart returns the part of an address before '@', or the whole address.
func LocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
