package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carelink/backend/internal/config"
)

// Sender delivers short text notifications to participants.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender posts messages through the Twilio REST API.
type TwilioSender struct {
	cfg    config.SMSConfig
	client *http.Client
}

func NewTwilioSender(cfg config.SMSConfig) *TwilioSender {
	return &TwilioSender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms send: status %d", resp.StatusCode)
	}
	return nil
}

// NopSender drops messages. Used when SMS credentials are not configured.
type NopSender struct{}

func (NopSender) Send(context.Context, string, string) error { return nil }
