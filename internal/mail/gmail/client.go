// Package gmail fetches messages from the Gmail REST API using an
// OAuth2 refresh token.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/mailwatch/internal/mail"
)

const (
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultAPIBase  = "https://gmail.googleapis.com/gmail/v1"
	httpTimeout     = 30 * time.Second

	// tokenSlack refreshes the access token slightly before Google's
	// reported expiry to avoid racing the deadline mid-batch.
	tokenSlack = 60 * time.Second
)

const gmailQueryDateFormat = "2006/01/02"

// Client reads messages from one Gmail inbox. It implements mail.Source.
type Client struct {
	clientID     string
	clientSecret string
	refreshToken string

	tokenURL string
	apiBase  string
	client   *http.Client
	logger   log.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New creates a Gmail client for the account behind the given OAuth2
// refresh token. The refresh token must carry the gmail.readonly scope.
func New(clientID, clientSecret, refreshToken string, logger log.Logger) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		tokenURL:     defaultTokenURL,
		apiBase:      defaultAPIBase,
		client:       &http.Client{Timeout: httpTimeout},
		logger:       logger,
	}
}

// Fetch lists inbox messages matching the criteria and resolves each one
// to a full message with headers and decoded body.
func (c *Client) Fetch(ctx context.Context, crit mail.Criteria) ([]*mail.Message, error) {
	ids, err := c.listMessages(ctx, crit)
	if err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "gmail list complete", "matches", len(ids))

	msgs := make([]*mail.Message, 0, len(ids))
	for _, id := range ids {
		m, err := c.getMessage(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("gmail: get message %s: %w", id, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (c *Client) listMessages(ctx context.Context, crit mail.Criteria) ([]string, error) {
	q := buildQuery(crit)

	params := url.Values{}
	params.Set("q", q)
	if crit.Limit > 0 {
		params.Set("maxResults", strconv.Itoa(crit.Limit))
	}

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.getJSON(ctx, c.apiBase+"/users/me/messages?"+params.Encode(), &list); err != nil {
		return nil, fmt.Errorf("gmail: list messages: %w", err)
	}

	ids := make([]string, 0, len(list.Messages))
	for _, m := range list.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (c *Client) getMessage(ctx context.Context, id string) (*mail.Message, error) {
	var raw apiMessage
	if err := c.getJSON(ctx, c.apiBase+"/users/me/messages/"+id, &raw); err != nil {
		return nil, err
	}

	m := &mail.Message{
		ID:       raw.ID,
		Sender:   "(Unknown)",
		Subject:  "(No Subject)",
		Priority: mail.PriorityUnclassified,
	}
	for _, h := range raw.Payload.Headers {
		switch h.Name {
		case "From":
			m.Sender = h.Value
		case "Subject":
			m.Subject = h.Value
		case "Date":
			m.ReceivedAt = h.Value
		}
	}
	m.Body = extractBody(&raw.Payload)
	return m, nil
}

// buildQuery renders mail.Criteria as a Gmail search expression.
// Gmail's after:/before: operators only have day resolution, so the
// window is widened to whole days.
func buildQuery(crit mail.Criteria) string {
	parts := []string{"label:INBOX"}
	if crit.Unread {
		parts = append(parts, "is:unread")
	} else {
		parts = append(parts, "is:read")
	}
	if !crit.Start.IsZero() {
		parts = append(parts, "after:"+crit.Start.UTC().Format(gmailQueryDateFormat))
	}
	if !crit.End.IsZero() {
		parts = append(parts, "before:"+crit.End.UTC().Format(gmailQueryDateFormat))
	}
	return strings.Join(parts, " ")
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("api returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// token returns a cached access token, exchanging the refresh token for
// a fresh one when the cache is empty or near expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenSlack)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", c.refreshToken)
	form.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("gmail: create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gmail: refresh token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gmail: token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("gmail: decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("gmail: token endpoint returned no access token")
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	c.logger.Info(ctx, "gmail access token refreshed", "expires_in_s", tok.ExpiresIn)
	return c.accessToken, nil
}
