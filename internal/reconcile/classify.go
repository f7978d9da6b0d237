package reconcile

import "strings"

// classRule maps normalised statuses of one source to a settlement class.
// Statuses absent from Match fall back to Otherwise.
type classRule struct {
	Match     map[string]SettlementClass
	Otherwise SettlementClass
}

var (
	billingRule = classRule{
		Match: map[string]SettlementClass{
			"draft":     ClassPending,
			"void":      ClassVoid,
			"voided":    ClassVoid,
			"cancelled": ClassVoid,
			"canceled":  ClassVoid,
		},
		Otherwise: ClassBilled,
	}

	quoteRule = classRule{Otherwise: ClassPending}

	retentionRule = classRule{
		Match:     map[string]SettlementClass{"final-confirmed": ClassRetained},
		Otherwise: ClassPending,
	}

	instrumentRule = classRule{
		Match:     map[string]SettlementClass{"cleared": ClassSettled},
		Otherwise: ClassPending,
	}
)

// classificationTable is keyed by counterparty kind, then source. Both kinds
// currently settle on the same payment-order statuses.
var classificationTable = map[Kind]map[SourceType]classRule{
	KindCustomer: {
		SourceBillingDocuments: billingRule,
		SourceQuotes:           quoteRule,
		SourceTaxRetentions:    retentionRule,
		SourcePaymentOrders: {
			Match: map[string]SettlementClass{
				"confirmed-received": ClassSettled,
				"confirmed-paid":     ClassSettled,
				"approved":           ClassSettled,
			},
			Otherwise: ClassPending,
		},
		SourceNegotiableInstruments: instrumentRule,
	},
	KindVendor: {
		SourceBillingDocuments: billingRule,
		SourceQuotes:           quoteRule,
		SourceTaxRetentions:    retentionRule,
		SourcePaymentOrders: {
			Match: map[string]SettlementClass{
				"confirmed-paid":     ClassSettled,
				"confirmed-received": ClassSettled,
				"approved":           ClassSettled,
			},
			Otherwise: ClassPending,
		},
		SourceNegotiableInstruments: instrumentRule,
	},
}

// Classify returns the settlement class of a source status for the given
// counterparty kind. Unknown kinds or sources classify as pending.
func Classify(kind Kind, source SourceType, status string) SettlementClass {
	rules, ok := classificationTable[kind]
	if !ok {
		return ClassPending
	}
	rule, ok := rules[source]
	if !ok {
		return ClassPending
	}
	if class, ok := rule.Match[NormalizeStatus(status)]; ok {
		return class
	}
	return rule.Otherwise
}

var statusFolder = strings.NewReplacer("_", "-", " ", "-")

// NormalizeStatus lowercases a status and folds "_" and spaces into "-", so
// CONFIRMED_PAID, "Confirmed Paid" and confirmed-paid compare equal.
func NormalizeStatus(status string) string {
	return statusFolder.Replace(strings.ToLower(strings.TrimSpace(status)))
}
