// Package messaging sends outbound WhatsApp messages through Twilio.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/errs"
	"github.com/vibe-coding-testes/contact-hub-zen/internal/inbound"
)

const sendTimeout = 10 * time.Second

// Sender delivers one message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, text string) (string, error)
}

// Unconfigured is the sender used when no credentials are set.
type Unconfigured struct{}

func (Unconfigured) Send(context.Context, string, string) (string, error) {
	return "", errs.ErrNotConfigured
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	// FromNumber is the sending WhatsApp number, with or without the whatsapp: prefix.
	FromNumber string
	// BaseURL replaces the Twilio API host, e.g. for a local mock. Empty means Twilio itself.
	BaseURL string
}

// Configured requires both credentials and an AC-prefixed account SID.
func (c TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && strings.HasPrefix(c.AccountSID, "AC")
}

// New returns a Twilio sender, or Unconfigured when cfg is incomplete.
func New(cfg TwilioConfig) Sender {
	if !cfg.Configured() {
		log.Warn().Msg("messaging: twilio credentials missing, outbound send disabled")
		return Unconfigured{}
	}
	httpClient := &http.Client{Timeout: sendTimeout}
	if target, err := url.Parse(cfg.BaseURL); err == nil && target.Host != "" {
		httpClient.Transport = hostOverride{target: target, next: http.DefaultTransport}
	}
	c := &twilioclient.Client{
		Credentials: twilioclient.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  httpClient,
	}
	c.SetAccountSid(cfg.AccountSID)
	return &TwilioSender{
		from: inbound.StripChannelPrefix(cfg.FromNumber),
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{Client: c}),
	}
}

type TwilioSender struct {
	from string
	rest *twilio.RestClient
}

func (s *TwilioSender) Send(ctx context.Context, to, text string) (string, error) {
	to = inbound.StripChannelPrefix(to)
	if to == "" || strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: to and message are required", errs.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrDelivery, err)
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo("whatsapp:" + to)
	params.SetFrom("whatsapp:" + s.from)
	params.SetBody(text)

	msg, err := s.rest.Api.CreateMessage(params)
	if err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			return "", fmt.Errorf("%w: twilio %d: %s", errs.ErrDelivery, restErr.Code, restErr.Message)
		}
		return "", fmt.Errorf("%w: %v", errs.ErrDelivery, err)
	}
	if msg == nil || msg.Sid == nil || *msg.Sid == "" {
		return "", fmt.Errorf("%w: response without message sid", errs.ErrDelivery)
	}
	status := ""
	if msg.Status != nil {
		status = *msg.Status
	}
	log.Info().Str("to", to).Str("sid", *msg.Sid).Str("status", status).Msg("messaging: whatsapp message sent")
	return *msg.Sid, nil
}

// hostOverride sends every request to target, keeping path and query.
type hostOverride struct {
	target *url.URL
	next   http.RoundTripper
}

func (h hostOverride) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = h.target.Scheme
	r.URL.Host = h.target.Host
	r.Host = h.target.Host
	return h.next.RoundTrip(r)
}
