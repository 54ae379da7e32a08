// Package mail defines the message domain model and the source interface
// for fetching messages from an upstream mailbox.
package mail

import (
	"context"
	"time"
)

// Priority is the two-valued classification outcome for a message.
type Priority string

const (
	// PriorityHigh means the message warrants an immediate alert.
	PriorityHigh Priority = "High Priority"

	// PriorityLow means the message can wait.
	PriorityLow Priority = "Low Priority"

	// PriorityUnclassified means the classifier has not run yet.
	PriorityUnclassified Priority = "Unclassified"
)

// Message is the unit of work flowing through the pipeline.
type Message struct {
	// ID is the opaque identifier assigned by the source system.
	// It is the primary key for deduplication.
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`

	// ReceivedAt is the original Date header, passed through verbatim.
	ReceivedAt string `json:"received_at,omitempty"`

	// Priority is set exactly once per pipeline pass and is immutable
	// once the record is persisted.
	Priority Priority `json:"priority"`
}

// Criteria selects which messages a Source should return.
type Criteria struct {
	Unread bool
	Start  time.Time
	End    time.Time
	Limit  int
}

// Source yields raw message records from a mailbox. An authentication
// failure is returned as-is; the pipeline does not recover from it.
type Source interface {
	Fetch(ctx context.Context, c Criteria) ([]*Message, error)
}
