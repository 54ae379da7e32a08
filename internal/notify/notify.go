// Package notify dispatches rate-limited alerts for high-priority
// messages through an outbound messaging transport. It owns the
// per-sender cooldown ledger, alert composition, and the channel-expired
// suppression logic; the wire transport itself is a collaborator.
package notify

import (
	"context"
	"errors"
)

// ErrChannelExpired signals that the outbound messaging channel has
// lapsed and must be manually re-authorized. Transports map their
// provider-specific error code to this sentinel.
var ErrChannelExpired = errors.New("notify: messaging channel expired")

// Transport delivers one alert body to the configured recipient and
// returns the provider message id.
type Transport interface {
	// Enabled reports whether the transport has complete credentials.
	// A disabled transport turns dispatch into a logged no-op.
	Enabled() bool
	Send(ctx context.Context, body string) (string, error)
}

// Shortener produces a short link for an alert deep-link. Best-effort:
// implementations return the original URL on any failure.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) string
}
