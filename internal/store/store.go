// Package store provides the business boundary for message persistence.
// It defines the Store interface, the Record model, and the Gateway that
// inserts classified messages idempotently.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/mailwatch/internal/mail"
)

// ErrDuplicate is returned by Insert when a record with the same id
// already exists. The unique constraint on id is the dedup guarantee
// across concurrent pipeline runs.
var ErrDuplicate = errors.New("store: duplicate id")

// Record is a persisted message. Records are immutable once written;
// a later pipeline pass never re-classifies a stored id.
type Record struct {
	ID          string        `json:"id"`
	Sender      string        `json:"sender"`
	Subject     string        `json:"subject"`
	Body        string        `json:"body,omitempty"`
	ReceivedAt  string        `json:"received_at,omitempty"`
	Priority    mail.Priority `json:"priority"`
	ProcessedAt time.Time     `json:"processed_at"`
}

// Store is the persistence interface for message records.
type Store interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, bool, error)
	Recent(ctx context.Context, limit int) ([]*Record, error)
}

// fromMessage builds a record from a classified message, defaulting the
// priority when the classifier did not run.
func fromMessage(m *mail.Message, processedAt time.Time) *Record {
	p := m.Priority
	if p == "" {
		p = mail.PriorityUnclassified
	}
	return &Record{
		ID:          m.ID,
		Sender:      m.Sender,
		Subject:     m.Subject,
		Body:        m.Body,
		ReceivedAt:  m.ReceivedAt,
		Priority:    p,
		ProcessedAt: processedAt,
	}
}
