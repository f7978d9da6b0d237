package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-recon/internal/app"
	"github.com/odyssey-erp/ledger-recon/internal/observability"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile/export"
	reconcilehttp "github.com/odyssey-erp/ledger-recon/internal/reconcile/http"
)

// memoryStore serves fixed records per source and fails the sources listed
// in failing.
type memoryStore struct {
	entities map[reconcile.EntityRef]reconcile.Entity
	records  map[reconcile.SourceType][]reconcile.RawRecord
	failing  map[reconcile.SourceType]bool
}

func (m *memoryStore) LookupEntity(ctx context.Context, ref reconcile.EntityRef) (reconcile.Entity, error) {
	entity, ok := m.entities[ref]
	if !ok {
		return reconcile.Entity{}, reconcile.ErrEntityNotFound
	}
	return entity, nil
}

func (m *memoryStore) Query(ctx context.Context, source reconcile.SourceType, q reconcile.Query) ([]reconcile.RawRecord, error) {
	if m.failing[source] {
		return nil, errors.New("relation does not exist")
	}
	return m.records[source], nil
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 9, 0, 0, 0, time.UTC)
}

func acmeStore() *memoryStore {
	acme := reconcile.Entity{ID: 7, DisplayName: "Acme Trading", Kind: reconcile.KindCustomer}
	return &memoryStore{
		entities: map[reconcile.EntityRef]reconcile.Entity{acme.Ref(): acme},
		records: map[reconcile.SourceType][]reconcile.RawRecord{
			reconcile.SourceBillingDocuments: {{ID: "11", Date: day(1), Reference: "INV-2024-011", Amount: "1000", Status: "confirmed"}},
			reconcile.SourcePaymentOrders:    {{ID: "4", Date: day(10), Reference: "PO-0004", Amount: "600", Status: "CONFIRMED_PAID"}},
			reconcile.SourceTaxRetentions:    {{ID: "2", Date: day(10), Reference: "RET-0002", Amount: "100", Status: "final-confirmed"}},
		},
		failing: map[reconcile.SourceType]bool{},
	}
}

func newServer(t *testing.T, store reconcile.Store) (*httptest.Server, *observability.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	pipeline := reconcile.NewPipeline(store, reconcile.PipelineConfig{
		SourceTimeout: time.Second,
		EntityTimeout: time.Second,
		Logger:        logger,
		Recorder:      metrics.Ledger(),
	})
	srv := httptest.NewServer(app.NewRouter(app.RouterParams{
		Logger:        logger,
		LedgerHandler: reconcilehttp.NewHandler(logger, pipeline, nil),
		Metrics:       metrics,
	}))
	t.Cleanup(srv.Close)
	return srv, metrics
}

func fetchStatement(t *testing.T, url string) (int, export.Statement) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var stmt export.Statement
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&stmt))
	}
	return resp.StatusCode, stmt
}

func TestStatementFlowReconcilesCustomer(t *testing.T) {
	srv, _ := newServer(t, acmeStore())

	code, stmt := fetchStatement(t, srv.URL+"/ledger/customer/7/statement")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, reconcile.StateSuccess, stmt.Status)
	require.Equal(t, "Acme Trading", stmt.Entity.DisplayName)
	require.Len(t, stmt.Transactions, 3)
	require.Equal(t, "billing-document-11", stmt.Transactions[2].ID)
	require.Equal(t, "settled", pick(t, stmt, "payment-order-4").SettlementClass)
	require.Equal(t, "retained", pick(t, stmt, "tax-retention-2").SettlementClass)
	require.Equal(t, "1000.000", stmt.Summary.TotalBilled)
	require.Equal(t, "600.000", stmt.Summary.TotalSettled)
	require.Equal(t, "100.000", stmt.Summary.TotalRetained)
	require.Equal(t, "300.000", stmt.Summary.Outstanding)
	require.Empty(t, stmt.Warnings)
}

func pick(t *testing.T, stmt export.Statement, id string) export.Transaction {
	t.Helper()
	for _, tx := range stmt.Transactions {
		if tx.ID == id {
			return tx
		}
	}
	t.Fatalf("transaction %s missing", id)
	return export.Transaction{}
}

func TestStatementFlowSurvivesFailingSource(t *testing.T) {
	store := acmeStore()
	store.failing[reconcile.SourcePaymentOrders] = true
	srv, metrics := newServer(t, store)

	code, stmt := fetchStatement(t, srv.URL+"/ledger/customer/7/statement")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, reconcile.StatePartialFailure, stmt.Status)
	require.Len(t, stmt.Transactions, 2)
	require.Equal(t, "900.000", stmt.Summary.Outstanding)
	require.Len(t, stmt.Warnings, 1)
	require.Equal(t, reconcile.WarningSourceFetch, stmt.Warnings[0].Code)
	require.Equal(t, reconcile.SourcePaymentOrders, stmt.Warnings[0].Source)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rr.Body.String(), `ledger_source_fetch_total{outcome="error",source="payment-order"} 1`)
}

func TestStatementFlowUnknownEntity(t *testing.T) {
	srv, _ := newServer(t, acmeStore())

	code, _ := fetchStatement(t, srv.URL+"/ledger/vendor/7/statement")
	require.Equal(t, http.StatusNotFound, code)
}

func TestStatementFlowCSV(t *testing.T) {
	srv, _ := newServer(t, acmeStore())

	resp, err := http.Get(srv.URL + "/ledger/customer/7/statement.csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(body), "Date,Source,Record,Reference,Status,Class,Amount,Description"))
	require.Contains(t, string(body), "Outstanding,300.000")
}
