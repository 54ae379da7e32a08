package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/linnemanlabs/mailwatch/internal/mail"
)

const (
	// DefaultPreviewMax caps the body preview length in alerts.
	DefaultPreviewMax = 600

	truncationMarker = "\n\n...(truncated preview)"

	receivedTimeFormat = "02-01-2006 15:04"
)

// buildAlertBody composes the WhatsApp-style alert for a high-priority
// message. link may be empty; receivedAt falls back to now when the
// source gave no Date header.
func buildAlertBody(m *mail.Message, link string, previewMax int, now time.Time) string {
	received := m.ReceivedAt
	if received == "" {
		received = now.Format(receivedTimeFormat)
	}

	var b strings.Builder
	b.WriteString("\U0001f6a8 *High Priority Email Alert*\n\n")
	fmt.Fprintf(&b, "\U0001f4e7 *From:* %s\n", m.Sender)
	fmt.Fprintf(&b, "\U0001f5d2️ *Subject:* %s\n", m.Subject)
	fmt.Fprintf(&b, "⚡ *Priority:* %s\n\n", m.Priority)
	fmt.Fprintf(&b, "\U0001f4dd *Body Preview:*\n%s\n\n", truncate(m.Body, previewMax))
	fmt.Fprintf(&b, "\U0001f4c5 *Received:* %s\n", received)
	if link != "" {
		fmt.Fprintf(&b, "\n\U0001f4e8 *Open in Gmail (App / Web):* %s\n", link)
	}
	b.WriteString("\n\U0001f515 Reply STOP to mute alerts temporarily.")
	return b.String()
}

// buildExpiryNotice is the one-time administrative notice sent when the
// messaging channel reports a lapsed session.
func buildExpiryNotice() string {
	return "⚠️ *WhatsApp Sandbox Expired*\n\n" +
		"Your WhatsApp sandbox session has expired.\n\n" +
		"Please re-enable notifications:\n" +
		"1. Open WhatsApp\n" +
		"2. Find the JOIN code shown in the Twilio Console\n" +
		"3. Send it to the sandbox number\n\n" +
		"\U0001f504 Alerts will resume automatically after rejoining."
}

// deepLink builds a Gmail search URL targeting the alerted message.
func deepLink(subject string) string {
	return "https://mail.google.com/mail/u/0/#search/" + url.QueryEscape(subject)
}

// truncate cuts s at limit and appends the truncation marker.
func truncate(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultPreviewMax
	}
	if len(s) <= limit {
		return s
	}
	return s[:limit] + truncationMarker
}
