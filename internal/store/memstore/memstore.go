// Package memstore provides an in-memory implementation of store.Store.
// Suitable for dev/testing; nothing survives a restart.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/mailwatch/internal/store"
)

// Store holds message records in memory, newest last.
type Store struct {
	mu      sync.RWMutex
	records map[string]*store.Record
	order   []string // insertion order, for Recent
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[string]*store.Record),
	}
}

// Exists reports whether a record with the given id is stored.
func (s *Store) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}

// Insert stores a copy of the record, failing on a duplicate id.
func (s *Store) Insert(_ context.Context, r *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return store.ErrDuplicate
	}
	cp := *r
	s.records[r.ID] = &cp
	s.order = append(s.order, r.ID)
	return nil
}

// Get retrieves a record by id. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*store.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// Recent returns up to limit records, most recently inserted first.
func (s *Store) Recent(_ context.Context, limit int) ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]*store.Record, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.records[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}
