package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// EmailProvider delivers notifications over SMTP.
type EmailProvider struct {
	cfg *config.Config
	log zerolog.Logger
}

// NewEmailProvider creates an EmailProvider from the SMTP settings.
func NewEmailProvider(cfg *config.Config, log zerolog.Logger) *EmailProvider {
	return &EmailProvider{
		cfg: cfg,
		log: log.With().Str("component", "email_provider").Logger(),
	}
}

// Send delivers one email. The context deadline is advisory only;
// net/smtp has no context support, so the dial timeout is the SMTP
// library's own.
func (p *EmailProvider) Send(ctx context.Context, n *model.Notification, r *Recipient) error {
	if r.Email == "" {
		return ErrNoDestination
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s\r\n",
		p.cfg.SMTPFrom, r.Email, n.Subject, n.Body,
	))

	addr := p.cfg.SMTPHost + ":" + p.cfg.SMTPPort
	auth := smtp.PlainAuth("", p.cfg.SMTPUser, p.cfg.SMTPPass, p.cfg.SMTPHost)

	if err := smtp.SendMail(addr, auth, p.cfg.SMTPFrom, []string{r.Email}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
