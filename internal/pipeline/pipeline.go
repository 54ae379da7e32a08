// Package pipeline orchestrates one processing run: fetch messages,
// classify them, store the new ones, and alert on high-priority arrivals.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/mailwatch/internal/classify"
	"github.com/linnemanlabs/mailwatch/internal/mail"
	"github.com/linnemanlabs/mailwatch/internal/notify"
	"github.com/linnemanlabs/mailwatch/internal/store"
)

var tracer = otel.Tracer("github.com/linnemanlabs/mailwatch/internal/pipeline")

const (
	// DefaultWindowHours is the rolling fetch window when none is given.
	DefaultWindowHours = 48
	// DefaultLimit caps how many messages a run pulls from the source.
	DefaultLimit = 4
)

// Params select what one run fetches. Zero values fall back to the
// defaults above; UnreadOnly false really means read mail, so callers
// must set it deliberately.
type Params struct {
	WindowHours int
	Limit       int
	UnreadOnly  bool
}

// Summary is the outcome of one pipeline run.
type Summary struct {
	RunID        string        `json:"run_id"`
	Processed    int           `json:"processed"`
	Inserted     int           `json:"inserted"`
	Skipped      int           `json:"skipped"`
	HighPriority int           `json:"high_priority"`
	AlertsSent   int           `json:"alerts_sent"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// Pipeline wires the source, classifier, dedup gateway and dispatcher
// into a single Run operation. The dispatcher may be nil, which turns
// the notify stage into a no-op.
type Pipeline struct {
	source     mail.Source
	classifier *classify.Classifier
	gateway    *store.Gateway
	dispatcher *notify.Dispatcher
	logger     log.Logger
	metrics    *Metrics
	now        func() time.Time
}

// New creates a pipeline. source, classifier and gateway are required;
// dispatcher and metrics are optional.
func New(source mail.Source, classifier *classify.Classifier, gateway *store.Gateway, dispatcher *notify.Dispatcher, logger log.Logger, metrics *Metrics) *Pipeline {
	if source == nil {
		panic(xerrors.New("source is required"))
	}
	if classifier == nil {
		panic(xerrors.New("classifier is required"))
	}
	if gateway == nil {
		panic(xerrors.New("gateway is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		source:     source,
		classifier: classifier,
		gateway:    gateway,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Run executes one fetch-classify-store-notify pass. A fetch failure
// aborts the run; everything past fetch degrades per message and the
// run still produces a summary.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Summary, error) {
	if params.WindowHours <= 0 {
		params.WindowHours = DefaultWindowHours
	}
	if params.Limit <= 0 {
		params.Limit = DefaultLimit
	}

	runID := ulid.Make().String()
	started := p.now()
	L := p.logger.With("run_id", runID)

	ctx, span := tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.window_hours", params.WindowHours),
		attribute.Int("run.limit", params.Limit),
	))
	defer span.End()

	L.Info(ctx, "pipeline run started",
		"window_hours", params.WindowHours,
		"limit", params.Limit,
		"unread_only", params.UnreadOnly,
	)

	msgs, err := p.fetch(ctx, params, started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		p.observeRun("fetch_error", nil, started)
		L.Error(ctx, err, "pipeline run aborted at fetch")
		return nil, fmt.Errorf("pipeline: fetch: %w", err)
	}

	p.classify(ctx, msgs)
	inserted, skipped := p.store(ctx, msgs)
	high := highPriority(inserted)
	alertsSent := p.notify(ctx, high)

	s := &Summary{
		RunID:        runID,
		Processed:    len(msgs),
		Inserted:     len(inserted),
		Skipped:      skipped,
		HighPriority: len(high),
		AlertsSent:   alertsSent,
		StartedAt:    started,
		Duration:     p.now().Sub(started),
	}
	p.observeRun("ok", s, started)

	span.SetAttributes(
		attribute.Int("run.processed", s.Processed),
		attribute.Int("run.inserted", s.Inserted),
		attribute.Int("run.alerts_sent", s.AlertsSent),
	)
	L.Info(ctx, "pipeline run complete",
		"processed", s.Processed,
		"inserted", s.Inserted,
		"skipped", s.Skipped,
		"high_priority", s.HighPriority,
		"alerts_sent", s.AlertsSent,
		"duration", s.Duration,
	)
	return s, nil
}

func (p *Pipeline) fetch(ctx context.Context, params Params, now time.Time) ([]*mail.Message, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Fetch")
	defer span.End()

	crit := mail.Criteria{
		Unread: params.UnreadOnly,
		Start:  now.Add(-time.Duration(params.WindowHours) * time.Hour),
		End:    now,
		Limit:  params.Limit,
	}
	msgs, err := p.source.Fetch(ctx, crit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("fetch.messages", len(msgs)))
	return msgs, nil
}

func (p *Pipeline) classify(ctx context.Context, msgs []*mail.Message) {
	ctx, span := tracer.Start(ctx, "pipeline.Classify")
	defer span.End()

	p.classifier.ClassifyBatch(ctx, msgs)
}

func (p *Pipeline) store(ctx context.Context, msgs []*mail.Message) ([]*mail.Message, int) {
	ctx, span := tracer.Start(ctx, "pipeline.Store")
	defer span.End()

	inserted, skipped := p.gateway.InsertNew(ctx, msgs)
	span.SetAttributes(
		attribute.Int("store.inserted", len(inserted)),
		attribute.Int("store.skipped", skipped),
	)
	return inserted, skipped
}

func (p *Pipeline) notify(ctx context.Context, high []*mail.Message) int {
	if p.dispatcher == nil || len(high) == 0 {
		return 0
	}
	ctx, span := tracer.Start(ctx, "pipeline.Notify")
	defer span.End()

	sent := p.dispatcher.DispatchBatch(ctx, high)
	span.SetAttributes(attribute.Int("notify.sent", sent))
	return sent
}

func (p *Pipeline) observeRun(outcome string, s *Summary, started time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.metrics.RunDuration.Observe(p.now().Sub(started).Seconds())
	if s == nil {
		return
	}
	p.metrics.MessagesProcessed.Add(float64(s.Processed))
	p.metrics.MessagesInserted.Add(float64(s.Inserted))
	p.metrics.MessagesSkipped.Add(float64(s.Skipped))
	p.metrics.AlertsSent.Add(float64(s.AlertsSent))
}

func highPriority(msgs []*mail.Message) []*mail.Message {
	var high []*mail.Message
	for _, m := range msgs {
		if m.Priority == mail.PriorityHigh {
			high = append(high, m)
		}
	}
	return high
}
