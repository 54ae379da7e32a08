// Package twilio delivers alerts as WhatsApp messages through the
// Twilio Messages API.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/linnemanlabs/mailwatch/internal/notify"
)

const (
	defaultEndpoint = "https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json"
	httpTimeout     = 10 * time.Second

	// codeChannelExpired is Twilio's error for a lapsed WhatsApp
	// sandbox session. The recipient must rejoin before any further
	// message will be accepted.
	codeChannelExpired = 63016
)

// Transport sends WhatsApp messages via the Twilio REST API. It keeps
// within Twilio's per-account throughput with a small token bucket.
type Transport struct {
	accountSID string
	authToken  string
	from       string
	to         string

	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// New creates a Twilio transport. from and to are WhatsApp-prefixed
// numbers such as "whatsapp:+14155238886". If any credential is empty
// the transport reports itself disabled.
func New(accountSID, authToken, from, to string) *Transport {
	return &Transport{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		endpoint:   fmt.Sprintf(defaultEndpoint, accountSID),
		client:     &http.Client{Timeout: httpTimeout},
		limiter:    rate.NewLimiter(rate.Limit(1), 3),
	}
}

// Enabled reports whether all four Twilio credentials are configured.
func (t *Transport) Enabled() bool {
	return t.accountSID != "" && t.authToken != "" && t.from != "" && t.to != ""
}

// Send posts one message and returns the Twilio message SID.
// A channel-expired response is wrapped in notify.ErrChannelExpired.
func (t *Transport) Send(ctx context.Context, body string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("twilio: rate limit wait: %w", err)
	}

	form := url.Values{}
	form.Set("From", t.from)
	form.Set("To", t.to)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("twilio: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio: post message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("twilio: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Code == codeChannelExpired {
			return "", fmt.Errorf("twilio: %s (code %d): %w", apiErr.Message, apiErr.Code, notify.ErrChannelExpired)
		}
		return "", fmt.Errorf("twilio: api returned %d: %s", resp.StatusCode, string(raw))
	}

	var msg struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("twilio: decode response: %w", err)
	}
	return msg.SID, nil
}
