// Package export renders reconciled statements for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
)

const dateLayout = "2006-01-02"

// WriteTransactionsCSV serialises the ordered transaction list.
func WriteTransactionsCSV(w io.Writer, txs []reconcile.Transaction) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Date", "Source", "Record", "Reference", "Status", "Class", "Amount", "Description"}); err != nil {
		return err
	}
	for _, tx := range txs {
		if err := writer.Write([]string{
			formatDate(tx),
			string(tx.SourceType),
			tx.SourceRecordID,
			tx.ReferenceCode,
			tx.Status,
			string(tx.SettlementClass),
			reconcile.FormatAmount(tx.Amount),
			tx.Description,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTotalsCSV emits the balance summary as a metric/value block.
func WriteTotalsCSV(w io.Writer, entity reconcile.Entity, summary reconcile.BalanceSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"Counterparty", entity.DisplayName},
		{"Kind", string(entity.Kind)},
		{"Total Billed", reconcile.FormatAmount(summary.TotalBilled)},
		{"Total Settled", reconcile.FormatAmount(summary.TotalSettled)},
		{"Total Retained", reconcile.FormatAmount(summary.TotalRetained)},
		{"Outstanding", reconcile.FormatAmount(summary.Outstanding)},
		{"Transactions", strconv.Itoa(summary.TransactionCount)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatDate(tx reconcile.Transaction) string {
	if tx.Date.IsZero() {
		return ""
	}
	return tx.Date.UTC().Format(dateLayout)
}
