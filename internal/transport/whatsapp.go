package transport

import (
	"context"
	"fmt"
	"strings"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// WhatsAppPrefix marks subscription channel ids that are WhatsApp numbers.
const WhatsAppPrefix = "whatsapp:"

// TwilioAPI is the subset of the Twilio REST client used for WhatsApp.
type TwilioAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// WhatsApp mirrors menu posts to WhatsApp numbers through Twilio. WhatsApp
// messages cannot be edited or shown to a single member, so only Send works.
type WhatsApp struct {
	api          TwilioAPI
	fromWhatsApp string
}

// NewWhatsApp creates a Twilio client bound to the configured WhatsApp sender number.
func NewWhatsApp(accountSID, authToken, fromWhatsApp string) *WhatsApp {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return NewWhatsAppWithAPI(client.Api, fromWhatsApp)
}

// NewWhatsAppWithAPI sends through an existing Twilio API client.
func NewWhatsAppWithAPI(api TwilioAPI, fromWhatsApp string) *WhatsApp {
	return &WhatsApp{api: api, fromWhatsApp: fromWhatsApp}
}

// WhatsAppChannel turns a phone number or Twilio "From" address into the
// channel id used for subscriptions. It returns "" for an empty number.
func WhatsAppChannel(number string) string {
	return normalizeWhatsAppAddress(number)
}

// Send implements Messenger. The handle is the Twilio message SID.
func (w *WhatsApp) Send(ctx context.Context, channelID string, msg Message) (string, error) {
	sender := normalizeWhatsAppAddress(w.fromWhatsApp)
	if sender == "" {
		return "", fmt.Errorf("twilio sender WhatsApp number is not configured")
	}

	recipient := normalizeWhatsAppAddress(channelID)
	if recipient == "" {
		return "", fmt.Errorf("recipient number missing or invalid")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(msg.Text)

	resp, err := w.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio send message error: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", fmt.Errorf("twilio send message: missing SID")
	}
	return *resp.Sid, nil
}

// Update implements Messenger.
func (w *WhatsApp) Update(ctx context.Context, channelID, handle string, msg Message) error {
	return ErrUnsupported
}

// SendEphemeral implements Messenger.
func (w *WhatsApp) SendEphemeral(ctx context.Context, channelID, userID, text string) error {
	return ErrUnsupported
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" || trimmed == WhatsAppPrefix {
		return ""
	}
	if strings.HasPrefix(trimmed, WhatsAppPrefix) {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return WhatsAppPrefix + trimmed
	}
	return WhatsAppPrefix + "+" + trimmed
}
