package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skillcore/skillcore-backend/internal/model"
)

type recordingProvider struct {
	last *Recipient
	err  error
}

func (p *recordingProvider) Send(_ context.Context, _ *model.Notification, r *Recipient) error {
	p.last = r
	return p.err
}

func TestDispatchRoutesStaffRecipient(t *testing.T) {
	provider := &recordingProvider{}
	d := NewDispatcher(zerolog.Nop())
	d.Register(model.ChannelEmail, provider)

	member := &model.Staff{ID: 12, Email: "counselor@district.example"}
	n := &model.Notification{
		ID:            uuid.New(),
		RecipientType: model.RecipientStaff,
		RecipientID:   member.ID,
		Channel:       model.ChannelEmail,
	}
	if err := d.Dispatch(context.Background(), n, StaffRecipient(member)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if provider.last == nil || provider.last.Email != "counselor@district.example" {
		t.Fatalf("provider did not receive the staff destination: %+v", provider.last)
	}
}

func TestDispatchUnknownChannel(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())
	n := &model.Notification{ID: uuid.New(), Channel: model.ChannelSMS}
	if err := d.Dispatch(context.Background(), n, &Recipient{ID: 1}); err == nil {
		t.Fatal("expected error for unregistered channel")
	}
}

func TestStaffRecipientIsEmailOnly(t *testing.T) {
	member := &model.Staff{ID: 4, Email: "p.nguyen@lakeside.demo"}
	r := StaffRecipient(member)

	if r.Email != member.Email {
		t.Errorf("email = %q, want %q", r.Email, member.Email)
	}
	if r.Phone != "" || r.PushToken != "" {
		t.Errorf("staff accounts carry no sms or push destinations: %+v", r)
	}
}

func TestGuardianRecipientCarriesAllDestinations(t *testing.T) {
	g := &model.Guardian{ID: 9, Email: "g@example.com", Phone: "+15550100", PushToken: "tok"}
	r := GuardianRecipient(g)

	if r.ID != 9 || r.Email != g.Email || r.Phone != g.Phone || r.PushToken != g.PushToken {
		t.Errorf("guardian contact points not carried: %+v", r)
	}
}

func TestProvidersRejectMissingDestination(t *testing.T) {
	ctx := context.Background()
	n := &model.Notification{ID: uuid.New(), Subject: "s", Body: "b"}
	empty := &Recipient{ID: 1}

	email := &EmailProvider{log: zerolog.Nop()}
	if err := email.Send(ctx, n, empty); !errors.Is(err, ErrNoDestination) {
		t.Errorf("email: err = %v, want ErrNoDestination", err)
	}

	sms := &SMSProvider{log: zerolog.Nop()}
	if err := sms.Send(ctx, n, empty); !errors.Is(err, ErrNoDestination) {
		t.Errorf("sms: err = %v, want ErrNoDestination", err)
	}

	push := &PushProvider{log: zerolog.Nop()}
	if err := push.Send(ctx, n, empty); !errors.Is(err, ErrNoDestination) {
		t.Errorf("push: err = %v, want ErrNoDestination", err)
	}
}
