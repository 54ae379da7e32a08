package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/mailwatch/internal/mail"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu        sync.Mutex
	records   map[string]*Record
	existsErr error
	insertErr error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]*Record)}
}

func (m *mockStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.records[id]
	return ok, nil
}

func (m *mockStore) Insert(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.records[r.ID]; ok {
		return ErrDuplicate
	}
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockStore) Get(_ context.Context, id string) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (m *mockStore) Recent(_ context.Context, _ int) ([]*Record, error) {
	return nil, nil
}

func msg(id string, p mail.Priority) *mail.Message {
	return &mail.Message{
		ID:       id,
		Sender:   "a@x.com",
		Subject:  "subject " + id,
		Priority: p,
	}
}

func TestInsertNew_InsertsAndSkips(t *testing.T) {
	t.Parallel()

	ms := newMockStore()
	g := NewGateway(ms, log.Nop())
	ctx := context.Background()

	inserted, skipped := g.InsertNew(ctx, []*mail.Message{
		msg("m-1", mail.PriorityHigh),
		msg("m-2", mail.PriorityLow),
	})
	if len(inserted) != 2 || skipped != 0 {
		t.Errorf("first pass = (%d, %d), want (2, 0)", len(inserted), skipped)
	}

	// Second pass with one known and one new id.
	inserted, skipped = g.InsertNew(ctx, []*mail.Message{
		msg("m-1", mail.PriorityLow), // re-classified; must not overwrite
		msg("m-3", mail.PriorityHigh),
	})
	if len(inserted) != 1 || skipped != 1 {
		t.Errorf("second pass = (%d, %d), want (1, 1)", len(inserted), skipped)
	}
	if len(inserted) == 1 && inserted[0].ID != "m-3" {
		t.Errorf("inserted subset = %q, want [m-3]", inserted[0].ID)
	}

	// The stored record keeps its original classification.
	r, ok, _ := ms.Get(ctx, "m-1")
	if !ok {
		t.Fatal("m-1 missing")
	}
	if r.Priority != mail.PriorityHigh {
		t.Errorf("m-1 priority = %q, want %q (immutable once stored)", r.Priority, mail.PriorityHigh)
	}
}

func TestInsertNew_SameIDTwiceInOneBatch(t *testing.T) {
	t.Parallel()

	g := NewGateway(newMockStore(), log.Nop())

	inserted, skipped := g.InsertNew(context.Background(), []*mail.Message{
		msg("m-1", mail.PriorityHigh),
		msg("m-1", mail.PriorityHigh),
	})
	if len(inserted) != 1 || skipped != 1 {
		t.Errorf("got (%d, %d), want (1, 1)", len(inserted), skipped)
	}
}

func TestInsertNew_DefaultsPriority(t *testing.T) {
	t.Parallel()

	ms := newMockStore()
	g := NewGateway(ms, log.Nop())

	m := msg("m-1", "")
	g.InsertNew(context.Background(), []*mail.Message{m})

	r, ok, _ := ms.Get(context.Background(), "m-1")
	if !ok {
		t.Fatal("m-1 missing")
	}
	if r.Priority != mail.PriorityUnclassified {
		t.Errorf("priority = %q, want %q", r.Priority, mail.PriorityUnclassified)
	}
	if r.ProcessedAt.IsZero() {
		t.Error("expected a processing timestamp")
	}
}

func TestInsertNew_InsertRaceCountsAsSkip(t *testing.T) {
	t.Parallel()

	// A store whose Exists says "new" but whose Insert hits the unique
	// constraint, as happens when a concurrent run wins the race.
	ms := newMockStore()
	ms.insertErr = ErrDuplicate
	g := NewGateway(ms, log.Nop())

	inserted, skipped := g.InsertNew(context.Background(), []*mail.Message{msg("m-1", mail.PriorityHigh)})
	if len(inserted) != 0 || skipped != 1 {
		t.Errorf("got (%d, %d), want (0, 1)", len(inserted), skipped)
	}
}

func TestInsertNew_ErrorDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	ms := newMockStore()

	// Fail only the first insert.
	calls := 0
	failing := &flakyStore{inner: ms, failOn: func() bool {
		calls++
		return calls == 1
	}}
	g := NewGateway(failing, log.Nop())

	inserted, skipped := g.InsertNew(context.Background(), []*mail.Message{
		msg("m-1", mail.PriorityHigh),
		msg("m-2", mail.PriorityLow),
	})
	if len(inserted) != 1 || skipped != 1 {
		t.Errorf("got (%d, %d), want (1, 1)", len(inserted), skipped)
	}
	if _, ok, _ := ms.Get(context.Background(), "m-2"); !ok {
		t.Error("m-2 should have been inserted after m-1 failed")
	}
}

// flakyStore fails Insert when failOn returns true.
type flakyStore struct {
	inner  Store
	failOn func() bool
}

func (f *flakyStore) Exists(ctx context.Context, id string) (bool, error) {
	return f.inner.Exists(ctx, id)
}

func (f *flakyStore) Insert(ctx context.Context, r *Record) error {
	if f.failOn() {
		return errors.New("connection reset")
	}
	return f.inner.Insert(ctx, r)
}

func (f *flakyStore) Get(ctx context.Context, id string) (*Record, bool, error) {
	return f.inner.Get(ctx, id)
}

func (f *flakyStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	return f.inner.Recent(ctx, limit)
}

func TestFromMessage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m := &mail.Message{
		ID:         "m-9",
		Sender:     "b@y.com",
		Subject:    "hi",
		Body:       "text",
		ReceivedAt: "Mon, 28 Aug 2026 10:00:00 +0000",
		Priority:   mail.PriorityHigh,
	}

	r := fromMessage(m, now)
	if r.ID != m.ID || r.Sender != m.Sender || r.Subject != m.Subject || r.Body != m.Body {
		t.Error("record fields do not match message")
	}
	if r.ReceivedAt != m.ReceivedAt {
		t.Errorf("ReceivedAt = %q, want passthrough", r.ReceivedAt)
	}
	if !r.ProcessedAt.Equal(now) {
		t.Errorf("ProcessedAt = %v, want %v", r.ProcessedAt, now)
	}
}
