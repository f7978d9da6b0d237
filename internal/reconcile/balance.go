package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Summarize derives the balance of an entity from its transactions. It is a
// pure function of its inputs.
//
// Vendors only count billed amounts coming from billing documents (purchase
// documents); customers count every billed transaction. Over-settlement
// clamps Outstanding at zero instead of reporting a credit.
func Summarize(entity Entity, txs []Transaction) (BalanceSummary, error) {
	summary := zeroSummary(entity.ID)
	summary.TransactionCount = len(txs)

	billed, settled, retained := decimal.Zero, decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if tx.Amount.IsNegative() {
			return summary, fmt.Errorf("%w: transaction %s has negative amount %s", ErrComputation, tx.ID, tx.Amount)
		}
		if !tx.SettlementClass.valid() {
			return summary, fmt.Errorf("%w: transaction %s has unknown settlement class %q", ErrComputation, tx.ID, tx.SettlementClass)
		}
		switch tx.SettlementClass {
		case ClassBilled:
			if entity.Kind == KindVendor && tx.SourceType != SourceBillingDocuments {
				continue
			}
			billed = billed.Add(tx.Amount)
		case ClassSettled:
			settled = settled.Add(tx.Amount)
		case ClassRetained:
			retained = retained.Add(tx.Amount)
		}
	}

	summary.TotalBilled = billed
	summary.TotalSettled = settled
	summary.TotalRetained = retained
	if outstanding := billed.Sub(settled).Sub(retained); outstanding.IsPositive() {
		summary.Outstanding = outstanding
	}
	return summary, nil
}
