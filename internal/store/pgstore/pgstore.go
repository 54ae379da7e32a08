// Package pgstore provides a PostgreSQL implementation of store.Store.
// The primary key on id carries the dedup guarantee: concurrent pipeline
// runs can never insert the same message twice.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/mailwatch/internal/mail"
	"github.com/linnemanlabs/mailwatch/internal/store"
)

var tracer = otel.Tracer("github.com/linnemanlabs/mailwatch/internal/store/pgstore")

//go:embed schema.sql
var schema string

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// Store persists message records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool stays owned
// by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const messageColumns = `id, sender, subject, body, received_at, priority, processed_at`

// Exists reports whether a record with the given id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Exists", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM messages WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

// Insert writes a single record. A duplicate id maps to store.ErrDuplicate.
func (s *Store) Insert(ctx context.Context, r *store.Record) error {
	ctx, span := tracer.Start(ctx, "pgstore.Insert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `INSERT INTO messages (` + messageColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := s.pool.Exec(ctx, query,
		r.ID, r.Sender, r.Subject, r.Body, r.ReceivedAt, string(r.Priority), r.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicate
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id string) (*store.Record, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	r, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r, true, nil
}

// Recent returns up to limit records, most recently processed first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*store.Record, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Recent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + messageColumns + ` FROM messages ORDER BY processed_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("recent: %w", err)
	}
	defer rows.Close()

	var out []*store.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// scanRecord scans a single row into a Record. Returns (nil, nil) when no
// row is found.
func scanRecord(row pgx.Row) (*store.Record, error) {
	var (
		r        store.Record
		priority string
	)
	err := row.Scan(&r.ID, &r.Sender, &r.Subject, &r.Body, &r.ReceivedAt, &priority, &r.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	r.Priority = mail.Priority(priority)
	return &r, nil
}
