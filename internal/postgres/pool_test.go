package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestLoggingTracer_ObserverSeesOutcome(t *testing.T) {
	type obs struct {
		outcome string
		dur     time.Duration
	}
	var observed []obs

	SetQueryObserver(QueryObserverFunc(func(_ context.Context, outcome string, dur time.Duration) {
		observed = append(observed, obs{outcome, dur})
	}))
	t.Cleanup(func() { SetQueryObserver(nil) })

	tr := loggingTracer{}
	ctx := tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	time.Sleep(time.Millisecond)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	ctx = tr.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT broken"})
	time.Sleep(time.Millisecond)
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("syntax error")})

	if len(observed) != 2 {
		t.Fatalf("observed %d queries, want 2", len(observed))
	}
	if observed[0].outcome != "ok" {
		t.Errorf("first outcome = %q, want ok", observed[0].outcome)
	}
	if observed[1].outcome != "error" {
		t.Errorf("second outcome = %q, want error", observed[1].outcome)
	}
	if observed[0].dur <= 0 {
		t.Error("expected positive duration")
	}
}

func TestNewPool_BadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewPool(context.Background(), "://not-a-url"); err == nil {
		t.Fatal("expected error for malformed database url")
	}
}
