package ledgerstore

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
)

var entityQueries = map[reconcile.Kind]string{
	reconcile.KindCustomer: `SELECT id, name FROM customers WHERE id = $1`,
	reconcile.KindVendor:   `SELECT id, name FROM suppliers WHERE id = $1`,
}

// sourceSpec describes how one source table is read. Every select list yields
// id, date, reference, amount, status, description in that order; amounts are
// cast to text so the engine sees the stored value verbatim.
type sourceSpec struct {
	from    string
	columns string
	dateCol string
	idCol   string
	nameCol string
	kindCol string
	dirCol  string
}

var sourceSpecs = map[reconcile.Kind]map[reconcile.SourceType]sourceSpec{
	reconcile.KindCustomer: {
		reconcile.SourceBillingDocuments: {
			from:    "ar_invoices",
			columns: "id::text, created_at, number, total::text, status, 'Due ' || to_char(due_at, 'YYYY-MM-DD')",
			dateCol: "created_at",
			idCol:   "customer_id",
		},
		reconcile.SourceQuotes: {
			from:    "quotations",
			columns: "id::text, quote_date::timestamptz, doc_number, total_amount::text, status, COALESCE(notes, '')",
			dateCol: "quote_date",
			idCol:   "customer_id",
		},
		reconcile.SourceTaxRetentions:         retentionSpec,
		reconcile.SourcePaymentOrders:         paymentOrderSpec,
		reconcile.SourceNegotiableInstruments: instrumentSpec,
	},
	reconcile.KindVendor: {
		reconcile.SourceBillingDocuments: {
			from:    "ap_invoices",
			columns: "id::text, created_at, number, total::text, status, 'Due ' || to_char(due_at, 'YYYY-MM-DD')",
			dateCol: "created_at",
			idCol:   "supplier_id",
		},
		reconcile.SourceQuotes: {
			from:    "purchase_quotations",
			columns: "id::text, quote_date::timestamptz, doc_number, total_amount::text, status, COALESCE(notes, '')",
			dateCol: "quote_date",
			idCol:   "supplier_id",
		},
		reconcile.SourceTaxRetentions:         retentionSpec,
		reconcile.SourcePaymentOrders:         paymentOrderSpec,
		reconcile.SourceNegotiableInstruments: instrumentSpec,
	},
}

var (
	retentionSpec = sourceSpec{
		from:    "tax_retentions",
		columns: "id::text, retained_at, certificate_number, amount::text, status, COALESCE(tax_code, '')",
		dateCol: "retained_at",
		nameCol: "counterparty_name",
		kindCol: "counterparty_kind",
	}

	paymentOrderSpec = sourceSpec{
		from:    "payment_orders",
		columns: "id::text, order_date, order_number, amount::text, status, COALESCE(concept, '')",
		dateCol: "order_date",
		nameCol: "counterparty_name",
		kindCol: "counterparty_kind",
	}

	instrumentSpec = sourceSpec{
		from:    "negotiable_instruments",
		columns: "id::text, issued_at, instrument_number, amount::text, status, COALESCE(bank_name, '')",
		dateCol: "issued_at",
		nameCol: "counterparty_name",
		dirCol:  "direction",
	}
)

// buildSourceQuery renders the SQL and arguments for one source query.
func buildSourceQuery(source reconcile.SourceType, q reconcile.Query) (string, []any, error) {
	spec, ok := sourceSpecs[q.Kind][source]
	if !ok {
		return "", nil, fmt.Errorf("ledgerstore: no %s source for kind %q", source, q.Kind)
	}

	var (
		where []string
		args  []any
	)
	add := func(col string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	switch {
	case spec.idCol != "":
		if q.EntityID <= 0 {
			return "", nil, fmt.Errorf("ledgerstore: %s joins by id, none given", source)
		}
		add(spec.idCol, q.EntityID)
	default:
		if q.EntityName == "" {
			return "", nil, fmt.Errorf("ledgerstore: %s joins by name, none given", source)
		}
		add(spec.nameCol, q.EntityName)
		if spec.kindCol != "" {
			add(spec.kindCol, string(q.Kind))
		}
		if spec.dirCol != "" && q.Direction != "" {
			add(spec.dirCol, string(q.Direction))
		}
	}

	order := fmt.Sprintf("%s ASC, id ASC", spec.dateCol)
	if q.OrderByDateDesc {
		order = fmt.Sprintf("%s DESC, id DESC", spec.dateCol)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		spec.columns, spec.from, strings.Join(where, " AND "), order)
	return stmt, args, nil
}
