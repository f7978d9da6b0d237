package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile/export"
	_ "github.com/odyssey-erp/ledger-recon/testing"
)

type stubRunner struct {
	result reconcile.Result
	onRun  func(calls int)

	mu    sync.Mutex
	calls int
}

func (s *stubRunner) Run(ctx context.Context, ref reconcile.EntityRef) reconcile.Result {
	s.mu.Lock()
	s.calls++
	calls := s.calls
	s.mu.Unlock()
	if s.onRun != nil {
		s.onRun(calls)
	}
	result := s.result
	result.Entity.ID = ref.ID
	result.Entity.Kind = ref.Kind
	return result
}

func acmeResult() reconcile.Result {
	return reconcile.Result{
		Entity: reconcile.Entity{DisplayName: "Acme Trading"},
		Transactions: []reconcile.Transaction{
			{ID: "payment-order-4", SourceType: reconcile.SourcePaymentOrders, Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), ReferenceCode: "PO-4", Amount: decimal.RequireFromString("600"), Status: "confirmed-paid", SettlementClass: reconcile.ClassSettled},
			{ID: "billing-document-11", SourceType: reconcile.SourceBillingDocuments, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ReferenceCode: "INV-11", Amount: decimal.RequireFromString("1234.5"), Status: "confirmed", SettlementClass: reconcile.ClassBilled},
		},
		Summary: reconcile.BalanceSummary{
			EntityID:         7,
			TotalBilled:      decimal.RequireFromString("1234.5"),
			TotalSettled:     decimal.RequireFromString("600"),
			TotalRetained:    decimal.Zero,
			Outstanding:      decimal.RequireFromString("634.5"),
			TransactionCount: 2,
		},
	}
}

func newCLI(t *testing.T, runner reconcile.Runner) *StatementCLI {
	t.Helper()
	cli, err := NewStatementCLI(runner, nil)
	require.NoError(t, err)
	return cli
}

func TestStatementCommandJSON(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := newCLI(t, &stubRunner{result: acmeResult()}).StatementCommand(context.Background(), StatementOptions{
		Kind:       "customer",
		EntityID:   7,
		Limit:      1,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, ExitOK, code)
	require.Empty(t, stderr.String())

	var doc export.Statement
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc))
	require.Len(t, doc.Transactions, 1)
	require.True(t, doc.Truncated)
	require.Equal(t, "634.500", doc.Summary.Outstanding)
}

func TestStatementCommandHumanGroupsDigits(t *testing.T) {
	stdout := new(bytes.Buffer)
	code := newCLI(t, &stubRunner{result: acmeResult()}).StatementCommand(context.Background(), StatementOptions{
		Kind:     "Customer",
		EntityID: 7,
		Stdout:   stdout,
		Stderr:   new(bytes.Buffer),
	})
	require.Equal(t, ExitOK, code)
	out := stdout.String()
	require.Contains(t, out, "Statement for Acme Trading (customer 7): success")
	require.Contains(t, out, "1,234.500")
	require.Contains(t, out, "INV-11")
	require.Contains(t, out, "634.500")
}

func TestStatementCommandPartialFailure(t *testing.T) {
	result := acmeResult()
	result.Warnings = []reconcile.Warning{{Code: reconcile.WarningSourceFetch, Source: reconcile.SourceTaxRetentions, Message: "timeout"}}
	stdout := new(bytes.Buffer)
	code := newCLI(t, &stubRunner{result: result}).StatementCommand(context.Background(), StatementOptions{
		Kind: "vendor", EntityID: 3, Stdout: stdout, Stderr: new(bytes.Buffer),
	})
	require.Equal(t, ExitPartialFailure, code)
	require.Contains(t, stdout.String(), "SOURCE_FETCH_ERROR tax-retention timeout")
}

func TestStatementCommandNotFound(t *testing.T) {
	runner := &stubRunner{result: reconcile.Result{
		Warnings: []reconcile.Warning{{Code: reconcile.WarningEntityNotFound, Message: "reconcile: entity not found"}},
	}}
	stderr := new(bytes.Buffer)
	code := newCLI(t, runner).StatementCommand(context.Background(), StatementOptions{
		Kind: "vendor", EntityID: 99, Watch: time.Millisecond, Stdout: new(bytes.Buffer), Stderr: stderr,
	})
	require.Equal(t, ExitNotFound, code)
	require.Contains(t, stderr.String(), "vendor 99 not found")
	require.Equal(t, 1, runner.calls)
}

func TestStatementCommandRejectsBadFlags(t *testing.T) {
	cli := newCLI(t, &stubRunner{result: acmeResult()})
	for _, opts := range []StatementOptions{
		{Kind: "partner", EntityID: 1},
		{Kind: "customer"},
		{Kind: "customer", EntityID: 1, Lang: "!!"},
	} {
		stderr := new(bytes.Buffer)
		opts.Stdout = new(bytes.Buffer)
		opts.Stderr = stderr
		require.Equal(t, ExitError, cli.StatementCommand(context.Background(), opts))
		require.True(t, strings.HasPrefix(stderr.String(), "statement:"))
	}
}

func TestStatementCommandWatchRefreshesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &stubRunner{result: acmeResult(), onRun: func(calls int) {
		if calls == 3 {
			cancel()
		}
	}}
	stdout := new(bytes.Buffer)

	code := newCLI(t, runner).StatementCommand(ctx, StatementOptions{
		Kind: "customer", EntityID: 7, Watch: 5 * time.Millisecond, Stdout: stdout, Stderr: new(bytes.Buffer),
	})
	require.Equal(t, ExitOK, code)
	require.Equal(t, 3, runner.calls)
	require.Equal(t, 2, strings.Count(stdout.String(), "Statement for Acme Trading"))
}

func TestNewStatementCLIRequiresRunner(t *testing.T) {
	_, err := NewStatementCLI(nil, nil)
	require.Error(t, err)
}
