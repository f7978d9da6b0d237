// Package ledgerstore implements the read-only ledger store on PostgreSQL.
package ledgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store reads counterparties and source records from PostgreSQL.
type Store struct {
	db dbtx
}

// New constructs a Store backed by the pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

var _ reconcile.Store = (*Store)(nil)

// LookupEntity loads the customer or supplier row addressed by ref.
func (s *Store) LookupEntity(ctx context.Context, ref reconcile.EntityRef) (reconcile.Entity, error) {
	query, ok := entityQueries[ref.Kind]
	if !ok {
		return reconcile.Entity{}, fmt.Errorf("%w: unknown kind %q", reconcile.ErrEntityNotFound, ref.Kind)
	}
	entity := reconcile.Entity{Kind: ref.Kind}
	err := s.db.QueryRow(ctx, query, ref.ID).Scan(&entity.ID, &entity.DisplayName)
	if errors.Is(err, pgx.ErrNoRows) {
		return reconcile.Entity{}, fmt.Errorf("%w: %s", reconcile.ErrEntityNotFound, ref)
	}
	if err != nil {
		return reconcile.Entity{}, fmt.Errorf("ledgerstore: lookup %s: %w", ref, err)
	}
	return entity, nil
}

// Query returns the records of one source for a counterparty, newest first.
func (s *Store) Query(ctx context.Context, source reconcile.SourceType, q reconcile.Query) ([]reconcile.RawRecord, error) {
	stmt, args, err := buildSourceQuery(source, q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("ledgerstore: query %s: %w", source, err)
	}
	defer rows.Close()

	var records []reconcile.RawRecord
	for rows.Next() {
		var (
			rec         reconcile.RawRecord
			date        pgtype.Timestamptz
			amount      pgtype.Text
			description pgtype.Text
		)
		if err := rows.Scan(&rec.ID, &date, &rec.Reference, &amount, &rec.Status, &description); err != nil {
			return nil, fmt.Errorf("ledgerstore: scan %s: %w", source, err)
		}
		if date.Valid {
			rec.Date = date.Time.UTC()
		}
		rec.Amount = amount.String
		rec.Description = description.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledgerstore: rows %s: %w", source, err)
	}
	return records, nil
}
