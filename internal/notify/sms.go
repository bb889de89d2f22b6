package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// smsMaxRunes keeps messages inside two SMS segments.
const smsMaxRunes = 300

// SMSProvider delivers notifications as text messages through Twilio.
type SMSProvider struct {
	client *twilio.RestClient
	from   string
	log    zerolog.Logger
}

// NewSMSProvider creates an SMSProvider from the Twilio settings.
func NewSMSProvider(cfg *config.Config, log zerolog.Logger) *SMSProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})

	return &SMSProvider{
		client: client,
		from:   cfg.TwilioFromNumber,
		log:    log.With().Str("component", "sms_provider").Logger(),
	}
}

// Send delivers one SMS. Long bodies are truncated rather than split.
func (p *SMSProvider) Send(ctx context.Context, n *model.Notification, r *Recipient) error {
	if r.Phone == "" {
		return ErrNoDestination
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := n.Subject + ": " + n.Body
	if runes := []rune(body); len(runes) > smsMaxRunes {
		body = string(runes[:smsMaxRunes-1]) + "…"
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(r.Phone)
	params.SetFrom(p.from)
	params.SetBody(body)

	resp, err := p.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}

	if resp.Sid != nil {
		p.log.Debug().Str("sid", *resp.Sid).Int("recipient_id", r.ID).Msg("SMS accepted by Twilio")
	}
	return nil
}
