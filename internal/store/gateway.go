package store

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/mailwatch/internal/mail"
)

// Gateway writes classified messages through to the durable store,
// skipping ids that are already present. Skipping discards the new
// classification result for known ids; that is the idempotence contract,
// not a bug.
type Gateway struct {
	store  Store
	logger log.Logger
	now    func() time.Time
}

// NewGateway creates a dedup gateway over the given store.
func NewGateway(s Store, logger log.Logger) *Gateway {
	if s == nil {
		panic(xerrors.New("store is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Gateway{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
}

// InsertNew inserts messages whose ids are not yet stored and returns
// the newly inserted subset in input order. Each insert commits
// independently; a per-record failure is logged, counted as skipped, and
// the batch continues, so a partial failure leaves a valid partial state.
func (g *Gateway) InsertNew(ctx context.Context, msgs []*mail.Message) (inserted []*mail.Message, skipped int) {
	for _, m := range msgs {
		exists, err := g.store.Exists(ctx, m.ID)
		if err != nil {
			g.logger.Error(ctx, err, "existence check failed", "id", m.ID)
			skipped++
			continue
		}
		if exists {
			g.logger.Info(ctx, "skipping duplicate message", "id", m.ID)
			skipped++
			continue
		}

		err = g.store.Insert(ctx, fromMessage(m, g.now()))
		switch {
		case err == nil:
			inserted = append(inserted, m)
		case errors.Is(err, ErrDuplicate):
			// Lost the check-then-insert race to a concurrent run; the
			// unique constraint makes this a routine skip.
			g.logger.Info(ctx, "duplicate insert raced, skipping", "id", m.ID)
			skipped++
		default:
			g.logger.Error(ctx, err, "insert failed", "id", m.ID)
			skipped++
		}
	}

	g.logger.Info(ctx, "store pass complete",
		"inserted", len(inserted),
		"skipped", skipped,
		"total", len(msgs),
	)
	return inserted, skipped
}
