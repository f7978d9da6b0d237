package reconcile

import (
	"context"
	"time"
)

// Direction filters negotiable instruments by who issued them.
type Direction string

const (
	DirectionReceived Direction = "received"
	DirectionIssued   Direction = "issued"
)

// Query selects the records of one source that belong to a counterparty.
// Exactly one of EntityID or EntityName is set depending on the join used by
// the source.
type Query struct {
	Kind            Kind
	EntityID        int64
	EntityName      string
	Direction       Direction
	OrderByDateDesc bool
}

// RawRecord is a source row before normalisation. Amount is kept as text so
// malformed values can be detected and reported.
type RawRecord struct {
	ID          string
	Date        time.Time
	Reference   string
	Amount      string
	Status      string
	Description string
}

// Store is the read-only ledger data provider.
type Store interface {
	// LookupEntity returns ErrEntityNotFound when the counterparty does not exist.
	LookupEntity(ctx context.Context, ref EntityRef) (Entity, error)
	Query(ctx context.Context, source SourceType, q Query) ([]RawRecord, error)
}
