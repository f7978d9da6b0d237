package reconcile

import (
	"context"
	"fmt"
	"time"
)

type joinKey int

const (
	joinByID joinKey = iota
	joinByName
	joinByNameAndDirection
)

// fetcher describes how one source is joined to the counterparty.
type fetcher struct {
	source SourceType
	join   joinKey
}

// fetchers is ordered by source priority; the pipeline relies on it.
var fetchers = []fetcher{
	{source: SourceBillingDocuments, join: joinByID},
	{source: SourceQuotes, join: joinByID},
	{source: SourceTaxRetentions, join: joinByName},
	{source: SourcePaymentOrders, join: joinByName},
	{source: SourceNegotiableInstruments, join: joinByNameAndDirection},
}

// FetchResult is what a single source contributes to a refresh cycle. Records
// still carry the raw source id in ID until merged.
type FetchResult struct {
	Source    SourceType
	Records   []Transaction
	Malformed []Warning
	Err       error
	Duration  time.Duration
}

func (f fetcher) query(entity Entity) Query {
	q := Query{Kind: entity.Kind, OrderByDateDesc: true}
	switch f.join {
	case joinByID:
		q.EntityID = entity.ID
	case joinByName:
		q.EntityName = entity.DisplayName
	case joinByNameAndDirection:
		q.EntityName = entity.DisplayName
		q.Direction = instrumentDirection(entity.Kind)
	}
	return q
}

func instrumentDirection(kind Kind) Direction {
	if kind == KindVendor {
		return DirectionIssued
	}
	return DirectionReceived
}

type queryOutcome struct {
	rows []RawRecord
	err  error
}

// fetch runs the source query bounded by timeout. It never panics and never
// blocks past the timeout, even when the store ignores the context.
func (f fetcher) fetch(ctx context.Context, store Store, entity Entity, timeout time.Duration) FetchResult {
	started := time.Now()
	result := FetchResult{Source: f.source}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan queryOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- queryOutcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		rows, err := store.Query(fetchCtx, f.source, f.query(entity))
		done <- queryOutcome{rows: rows, err: err}
	}()

	var outcome queryOutcome
	select {
	case outcome = <-done:
	case <-fetchCtx.Done():
		select {
		case outcome = <-done:
		default:
			outcome = queryOutcome{err: fetchCtx.Err()}
		}
	}
	result.Duration = time.Since(started)

	if outcome.err != nil {
		result.Err = &SourceError{Source: f.source, Err: outcome.err}
		return result
	}
	result.Records, result.Malformed = normalize(entity.Kind, f.source, outcome.rows)
	return result
}

// normalize maps raw rows into transactions, keeping malformed rows with a
// zero amount and reporting them.
func normalize(kind Kind, source SourceType, rows []RawRecord) ([]Transaction, []Warning) {
	records := make([]Transaction, 0, len(rows))
	var malformed []Warning
	for _, row := range rows {
		amount, err := parseAmount(row.Amount)
		if err != nil {
			malformed = append(malformed, warningFor(err, source, row.ID))
		}
		if row.Date.IsZero() {
			malformed = append(malformed, warningFor(fmt.Errorf("%w: missing date", ErrMalformedRecord), source, row.ID))
		}
		records = append(records, Transaction{
			ID:              row.ID,
			SourceType:      source,
			SourceRecordID:  row.ID,
			Date:            row.Date,
			ReferenceCode:   row.Reference,
			Amount:          amount,
			Status:          row.Status,
			SettlementClass: Classify(kind, source, row.Status),
			Description:     row.Description,
		})
	}
	return records, malformed
}
