package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/skillcore/skillcore-backend/internal/config"
	"github.com/skillcore/skillcore-backend/internal/model"
)

// PushProvider delivers notifications to a push gateway that fans out
// to the guardian's registered device.
type PushProvider struct {
	gatewayURL string
	apiKey     string
	client     *http.Client
	log        zerolog.Logger
}

// NewPushProvider creates a PushProvider from the gateway settings.
func NewPushProvider(cfg *config.Config, log zerolog.Logger) *PushProvider {
	return &PushProvider{
		gatewayURL: cfg.PushGatewayURL,
		apiKey:     cfg.PushAPIKey,
		client:     &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "push_provider").Logger(),
	}
}

type pushRequest struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send posts one push message to the gateway.
func (p *PushProvider) Send(ctx context.Context, n *model.Notification, r *Recipient) error {
	if r.PushToken == "" {
		return ErrNoDestination
	}

	payload, err := json.Marshal(pushRequest{
		To:    r.PushToken,
		Title: n.Subject,
		Body:  n.Body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.gatewayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, body)
	}
	return nil
}
