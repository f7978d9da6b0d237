package export

import (
	"time"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
)

// Transaction is the wire form of a reconciled transaction. Amounts are
// fixed three-decimal strings.
type Transaction struct {
	ID              string `json:"id"`
	SourceType      string `json:"source_type"`
	SourceRecordID  string `json:"source_record_id"`
	Date            string `json:"date"`
	ReferenceCode   string `json:"reference_code"`
	Amount          string `json:"amount"`
	Status          string `json:"status"`
	SettlementClass string `json:"settlement_class"`
	Description     string `json:"description"`
}

// Summary is the wire form of a balance summary.
type Summary struct {
	EntityID         int64  `json:"entity_id"`
	TotalBilled      string `json:"total_billed"`
	TotalSettled     string `json:"total_settled"`
	TotalRetained    string `json:"total_retained"`
	Outstanding      string `json:"outstanding"`
	TransactionCount int    `json:"transaction_count"`
}

// Statement is the document served by the API and printed by the CLI.
type Statement struct {
	Status       reconcile.State     `json:"status"`
	Entity       reconcile.Entity    `json:"entity"`
	Transactions []Transaction       `json:"transactions"`
	Truncated    bool                `json:"truncated"`
	Summary      Summary             `json:"summary"`
	Warnings     []reconcile.Warning `json:"warnings"`
}

// NewStatement converts result. A positive limit truncates the transaction
// list; the summary always covers every transaction.
func NewStatement(result reconcile.Result, limit int) Statement {
	txs := result.Transactions
	truncated := false
	if limit > 0 && limit < len(txs) {
		txs = txs[:limit]
		truncated = true
	}
	rows := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, NewTransaction(tx))
	}
	warnings := result.Warnings
	if warnings == nil {
		warnings = []reconcile.Warning{}
	}
	return Statement{
		Status:       result.State(),
		Entity:       result.Entity,
		Transactions: rows,
		Truncated:    truncated,
		Summary:      NewSummary(result.Summary),
		Warnings:     warnings,
	}
}

// NewTransaction converts one transaction. A missing date renders empty.
func NewTransaction(tx reconcile.Transaction) Transaction {
	date := ""
	if !tx.Date.IsZero() {
		date = tx.Date.UTC().Format(time.RFC3339)
	}
	return Transaction{
		ID:              tx.ID,
		SourceType:      string(tx.SourceType),
		SourceRecordID:  tx.SourceRecordID,
		Date:            date,
		ReferenceCode:   tx.ReferenceCode,
		Amount:          reconcile.FormatAmount(tx.Amount),
		Status:          tx.Status,
		SettlementClass: string(tx.SettlementClass),
		Description:     tx.Description,
	}
}

// NewSummary converts a balance summary.
func NewSummary(summary reconcile.BalanceSummary) Summary {
	return Summary{
		EntityID:         summary.EntityID,
		TotalBilled:      reconcile.FormatAmount(summary.TotalBilled),
		TotalSettled:     reconcile.FormatAmount(summary.TotalSettled),
		TotalRetained:    reconcile.FormatAmount(summary.TotalRetained),
		Outstanding:      reconcile.FormatAmount(summary.Outstanding),
		TransactionCount: summary.TransactionCount,
	}
}
