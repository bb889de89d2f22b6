// Package notify holds the delivery vendors behind outbound
// notifications. Each channel gets one Provider; the Dispatcher picks
// the right one per notification row.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// ErrNoDestination means the recipient has no usable address for the
// channel, so retrying can never succeed.
var ErrNoDestination = errors.New("recipient has no destination for this channel")

// Recipient is the resolved destination set for one notification,
// whether it targets a guardian or a staff member.
type Recipient struct {
	ID        int
	Email     string
	Phone     string
	PushToken string
}

// GuardianRecipient maps a guardian's contact points onto a Recipient.
func GuardianRecipient(g *model.Guardian) *Recipient {
	return &Recipient{ID: g.ID, Email: g.Email, Phone: g.Phone, PushToken: g.PushToken}
}

// StaffRecipient maps a staff account onto a Recipient. Staff accounts
// carry no SMS or push destinations, so staff rows are email only.
func StaffRecipient(s *model.Staff) *Recipient {
	return &Recipient{ID: s.ID, Email: s.Email}
}

// Provider delivers one notification over a single vendor channel.
type Provider interface {
	Send(ctx context.Context, n *model.Notification, r *Recipient) error
}

// Dispatcher routes notifications to the provider registered for
// their channel.
type Dispatcher struct {
	providers map[model.NotificationChannel]Provider
	log       zerolog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		providers: make(map[model.NotificationChannel]Provider),
		log:       log.With().Str("component", "notify_dispatcher").Logger(),
	}
}

// Register binds a provider to a channel, replacing any previous one.
func (d *Dispatcher) Register(channel model.NotificationChannel, p Provider) {
	d.providers[channel] = p
}

// Dispatch delivers the notification through its channel's provider.
func (d *Dispatcher) Dispatch(ctx context.Context, n *model.Notification, r *Recipient) error {
	provider, ok := d.providers[n.Channel]
	if !ok {
		return fmt.Errorf("no provider registered for channel %q", n.Channel)
	}

	if err := provider.Send(ctx, n, r); err != nil {
		return err
	}

	d.log.Debug().
		Str("notification_id", n.ID.String()).
		Str("channel", string(n.Channel)).
		Int("recipient_id", r.ID).
		Msg("Notification delivered")
	return nil
}
