package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu       sync.Mutex
	fetches  map[SourceType]bool
	warnings map[WarningCode]int
	stale    int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{fetches: make(map[SourceType]bool), warnings: make(map[WarningCode]int)}
}

func (r *countingRecorder) ObserveFetch(source SourceType, failed bool, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches[source] = failed
}

func (r *countingRecorder) CountWarning(code WarningCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings[code]++
}

func (r *countingRecorder) CountStale() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func TestPipelineCustomerScenario(t *testing.T) {
	recorder := newCountingRecorder()
	p := NewPipeline(scenarioStore(), PipelineConfig{Recorder: recorder})

	result := p.Run(context.Background(), acme.Ref())
	require.Empty(t, result.Warnings)
	require.Equal(t, StateSuccess, result.State())
	require.Equal(t, acme, result.Entity)
	require.Len(t, result.Transactions, 3)
	requireAmount(t, "1000.000", result.Summary.TotalBilled)
	requireAmount(t, "600.000", result.Summary.TotalSettled)
	requireAmount(t, "100.000", result.Summary.TotalRetained)
	requireAmount(t, "300.000", result.Summary.Outstanding)
	require.Len(t, recorder.fetches, len(Sources))

	// Same date: retention outranks payment order; the invoice is oldest.
	require.Equal(t, "tax-retention-2", result.Transactions[0].ID)
	require.Equal(t, "payment-order-4", result.Transactions[1].ID)
	require.Equal(t, "billing-document-11", result.Transactions[2].ID)
	require.Equal(t, ClassBilled, result.Transactions[2].SettlementClass)
}

func TestPipelineOverSettlementClamps(t *testing.T) {
	store := scenarioStore()
	store.rows[SourcePaymentOrders] = append(store.rows[SourcePaymentOrders],
		RawRecord{ID: "5", Date: day(12), Reference: "PO-0005", Amount: "500.000", Status: "confirmed-paid"})

	result := NewPipeline(store, PipelineConfig{}).Run(context.Background(), acme.Ref())
	requireAmount(t, "0.000", result.Summary.Outstanding)
	requireAmount(t, "1100.000", result.Summary.TotalSettled)
}

func TestPipelineRetentionFailureIsPartial(t *testing.T) {
	store := scenarioStore()
	store.errs[SourceTaxRetentions] = errors.New("connection reset by peer")
	recorder := newCountingRecorder()

	result := NewPipeline(store, PipelineConfig{Recorder: recorder}).Run(context.Background(), acme.Ref())
	require.Equal(t, StatePartialFailure, result.State())
	require.Len(t, result.Warnings, 1)
	require.Equal(t, WarningSourceFetch, result.Warnings[0].Code)
	require.Equal(t, SourceTaxRetentions, result.Warnings[0].Source)
	require.False(t, result.Terminal())

	ids := map[string]bool{}
	for _, tx := range result.Transactions {
		ids[tx.ID] = true
	}
	require.True(t, ids["billing-document-11"])
	require.True(t, ids["payment-order-4"])
	require.Len(t, result.Transactions, 2)
	requireAmount(t, "0.000", result.Summary.TotalRetained)
	requireAmount(t, "400.000", result.Summary.Outstanding)
	require.True(t, recorder.fetches[SourceTaxRetentions])
	require.Equal(t, 1, recorder.warnings[WarningSourceFetch])
}

func TestPipelineEveryOtherSourceSurvivesOneFailure(t *testing.T) {
	for _, failing := range Sources {
		t.Run(string(failing), func(t *testing.T) {
			store := newStubStore().withEntity(acme)
			for i, src := range Sources {
				store.rows[src] = []RawRecord{{ID: "1", Date: day(i + 1), Amount: "1", Status: "x"}}
			}
			store.errs[failing] = errors.New("boom")

			result := NewPipeline(store, PipelineConfig{}).Run(context.Background(), acme.Ref())
			require.GreaterOrEqual(t, len(result.Warnings), 1)
			require.Len(t, result.Transactions, len(Sources)-1)
			for _, tx := range result.Transactions {
				require.NotEqual(t, failing, tx.SourceType)
			}
		})
	}
}

func TestPipelineEntityNotFound(t *testing.T) {
	result := NewPipeline(scenarioStore(), PipelineConfig{}).Run(context.Background(), EntityRef{Kind: KindCustomer, ID: 404})
	require.NotNil(t, result.Transactions)
	require.Empty(t, result.Transactions)
	require.Len(t, result.Warnings, 1)
	require.Equal(t, WarningEntityNotFound, result.Warnings[0].Code)
	require.Equal(t, int64(404), result.Summary.EntityID)
	requireAmount(t, "0.000", result.Summary.TotalBilled)
	requireAmount(t, "0.000", result.Summary.TotalSettled)
	requireAmount(t, "0.000", result.Summary.TotalRetained)
	requireAmount(t, "0.000", result.Summary.Outstanding)
	require.Zero(t, result.Summary.TransactionCount)
	require.True(t, result.Terminal())
}

func TestPipelineInvalidRefIsNotFound(t *testing.T) {
	result := NewPipeline(scenarioStore(), PipelineConfig{}).Run(context.Background(), EntityRef{Kind: "partner", ID: 7})
	require.True(t, result.HasWarning(WarningEntityNotFound))
}

func TestPipelineIsIdempotentAndSorted(t *testing.T) {
	store := scenarioStore()
	store.rows[SourceQuotes] = []RawRecord{
		{ID: "q1", Date: day(20), Amount: "75.250", Status: "sent"},
		{ID: "q2", Date: day(3), Amount: "12", Status: "accepted"},
	}
	store.rows[SourceNegotiableInstruments] = []RawRecord{
		{ID: "c1", Date: day(15), Amount: "40", Status: "cleared"},
	}
	p := NewPipeline(store, PipelineConfig{})

	first := p.Run(context.Background(), acme.Ref())
	second := p.Run(context.Background(), acme.Ref())
	require.Equal(t, first.Transactions, second.Transactions)
	require.Equal(t, first.Summary, second.Summary)

	for i := 1; i < len(first.Transactions); i++ {
		prev, cur := first.Transactions[i-1].Date, first.Transactions[i].Date
		require.False(t, cur.After(prev), "transactions out of order at %d", i)
	}
	requireAmount(t, "260.000", first.Summary.Outstanding)
}

func TestPipelineKeepsMalformedRecords(t *testing.T) {
	store := scenarioStore()
	store.rows[SourceBillingDocuments] = append(store.rows[SourceBillingDocuments],
		RawRecord{ID: "12", Date: day(2), Reference: "INV-0012", Amount: "12,5O", Status: "posted"},
		RawRecord{ID: "13", Date: day(2), Reference: "INV-0013", Amount: "-3", Status: "posted"},
	)

	result := NewPipeline(store, PipelineConfig{}).Run(context.Background(), acme.Ref())
	require.Len(t, result.Transactions, 5)
	require.Equal(t, 5, result.Summary.TransactionCount)
	requireAmount(t, "1000.000", result.Summary.TotalBilled)
	require.Len(t, result.Warnings, 2)
	for _, w := range result.Warnings {
		require.Equal(t, WarningMalformedRecord, w.Code)
		require.Equal(t, SourceBillingDocuments, w.Source)
	}
	require.Equal(t, "12", result.Warnings[0].RecordID)
}

func TestPipelineJoinKeys(t *testing.T) {
	vendor := Entity{ID: 3, DisplayName: "Borneo Logistics", Kind: KindVendor}
	store := newStubStore().withEntity(vendor).withEntity(acme)
	p := NewPipeline(store, PipelineConfig{})

	p.Run(context.Background(), vendor.Ref())
	require.Equal(t, int64(3), store.lastQuery(SourceBillingDocuments).EntityID)
	require.Empty(t, store.lastQuery(SourceBillingDocuments).EntityName)
	require.Equal(t, int64(3), store.lastQuery(SourceQuotes).EntityID)
	require.Equal(t, "Borneo Logistics", store.lastQuery(SourceTaxRetentions).EntityName)
	require.Zero(t, store.lastQuery(SourcePaymentOrders).EntityID)
	instruments := store.lastQuery(SourceNegotiableInstruments)
	require.Equal(t, "Borneo Logistics", instruments.EntityName)
	require.Equal(t, DirectionIssued, instruments.Direction)
	require.Equal(t, KindVendor, instruments.Kind)
	require.True(t, instruments.OrderByDateDesc)

	p.Run(context.Background(), acme.Ref())
	require.Equal(t, DirectionReceived, store.lastQuery(SourceNegotiableInstruments).Direction)
}

func TestPipelineSourceTimeoutDoesNotBlockOthers(t *testing.T) {
	store := scenarioStore()
	store.block[SourcePaymentOrders] = true

	started := time.Now()
	result := NewPipeline(store, PipelineConfig{SourceTimeout: 50 * time.Millisecond}).Run(context.Background(), acme.Ref())
	require.Less(t, time.Since(started), 900*time.Millisecond)

	require.Len(t, result.Warnings, 1)
	require.Equal(t, SourcePaymentOrders, result.Warnings[0].Source)
	require.Equal(t, WarningSourceFetch, result.Warnings[0].Code)
	require.Contains(t, result.Warnings[0].Message, context.DeadlineExceeded.Error())
	require.Len(t, result.Transactions, 2)
	requireAmount(t, "900.000", result.Summary.Outstanding)
}

type panickingStore struct{ *stubStore }

func (s panickingStore) Query(ctx context.Context, source SourceType, q Query) ([]RawRecord, error) {
	if source == SourceQuotes {
		panic("nil map")
	}
	return s.stubStore.Query(ctx, source, q)
}

func TestPipelineRecoversFromStorePanic(t *testing.T) {
	result := NewPipeline(panickingStore{scenarioStore()}, PipelineConfig{}).Run(context.Background(), acme.Ref())
	require.Len(t, result.Warnings, 1)
	require.Equal(t, SourceQuotes, result.Warnings[0].Source)
	require.Len(t, result.Transactions, 3)
}

type failingLookupStore struct{ *stubStore }

func (failingLookupStore) LookupEntity(ctx context.Context, ref EntityRef) (Entity, error) {
	return Entity{}, errors.New("too many connections")
}

func TestPipelineLookupFailureIsTerminal(t *testing.T) {
	result := NewPipeline(failingLookupStore{scenarioStore()}, PipelineConfig{}).Run(context.Background(), acme.Ref())
	require.Empty(t, result.Transactions)
	require.Len(t, result.Warnings, 1)
	require.Equal(t, WarningSourceFetch, result.Warnings[0].Code)
	require.True(t, result.Terminal())
}
