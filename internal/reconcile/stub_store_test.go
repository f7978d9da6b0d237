package reconcile

import (
	"context"
	"sync"
	"time"
)

// stubStore serves rows only to queries joined on owner.
type stubStore struct {
	mu       sync.Mutex
	owner    Entity
	entities map[EntityRef]Entity
	rows     map[SourceType][]RawRecord
	errs     map[SourceType]error
	block    map[SourceType]bool
	queries  map[SourceType]Query
}

func newStubStore() *stubStore {
	return &stubStore{
		owner:    acme,
		entities: make(map[EntityRef]Entity),
		rows:     make(map[SourceType][]RawRecord),
		errs:     make(map[SourceType]error),
		block:    make(map[SourceType]bool),
		queries:  make(map[SourceType]Query),
	}
}

func (s *stubStore) withEntity(e Entity) *stubStore {
	s.entities[e.Ref()] = e
	return s
}

func (s *stubStore) LookupEntity(ctx context.Context, ref EntityRef) (Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[ref]
	if !ok {
		return Entity{}, ErrEntityNotFound
	}
	return e, nil
}

func (s *stubStore) Query(ctx context.Context, source SourceType, q Query) ([]RawRecord, error) {
	s.mu.Lock()
	s.queries[source] = q
	block := s.block[source]
	err := s.errs[source]
	rows := append([]RawRecord(nil), s.rows[source]...)
	s.mu.Unlock()

	if block {
		// Ignores ctx on purpose to prove the fetch timeout holds anyway.
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, err
	}
	if q.EntityID != s.owner.ID && q.EntityName != s.owner.DisplayName {
		return nil, nil
	}
	return rows, nil
}

func (s *stubStore) lastQuery(source SourceType) Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[source]
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

var acme = Entity{ID: 7, DisplayName: "Acme Trading", Kind: KindCustomer}

// scenarioStore holds one confirmed invoice of 1000, one paid order of 600
// and one confirmed retention of 100.
func scenarioStore() *stubStore {
	s := newStubStore().withEntity(acme)
	s.rows[SourceBillingDocuments] = []RawRecord{
		{ID: "11", Date: day(1), Reference: "INV-0011", Amount: "1000.000", Status: "confirmed", Description: "March supplies"},
	}
	s.rows[SourcePaymentOrders] = []RawRecord{
		{ID: "4", Date: day(10), Reference: "PO-0004", Amount: "600.000", Status: "confirmed-paid"},
	}
	s.rows[SourceTaxRetentions] = []RawRecord{
		{ID: "2", Date: day(10), Reference: "RT-0002", Amount: "100.000", Status: "final-confirmed"},
	}
	return s
}
