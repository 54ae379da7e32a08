// Package bitly shortens alert deep-links via the Bitly v4 API.
// Shortening is best-effort: every failure degrades to the original URL
// so an alert is never blocked on the shortener.
package bitly

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

const (
	shortenEndpoint = "https://api-ssl.bitly.com/v4/shorten"
	httpTimeout     = 8 * time.Second
)

// Shortener calls the Bitly shorten API. If the access token is empty,
// Shorten passes URLs through untouched.
type Shortener struct {
	token    string
	endpoint string
	client   *http.Client
	logger   log.Logger
}

// New creates a Bitly shortener.
func New(token string, logger log.Logger) *Shortener {
	if logger == nil {
		logger = log.Nop()
	}
	return &Shortener{
		token:    token,
		endpoint: shortenEndpoint,
		client:   &http.Client{Timeout: httpTimeout},
		logger:   logger,
	}
}

// Shorten returns a short link for longURL, or longURL itself when the
// shortener is unconfigured or the call fails.
func (s *Shortener) Shorten(ctx context.Context, longURL string) string {
	if s.token == "" {
		return longURL
	}

	payload, err := json.Marshal(map[string]string{"long_url": longURL})
	if err != nil {
		s.logger.Warn(ctx, "bitly: marshal payload failed", "error", err)
		return longURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		s.logger.Warn(ctx, "bitly: create request failed", "error", err)
		return longURL
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn(ctx, "bitly: shorten failed, using full link", "error", err)
		return longURL
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn(ctx, "bitly: shorten returned error status",
			"status", resp.StatusCode, "body", string(body))
		return longURL
	}

	var out struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		s.logger.Warn(ctx, "bitly: decode response failed", "error", err)
		return longURL
	}
	if out.Link == "" {
		s.logger.Warn(ctx, "bitly: response missing link field")
		return longURL
	}
	return out.Link
}
