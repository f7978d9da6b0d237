package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		kind   Kind
		source SourceType
		status string
		want   SettlementClass
	}{
		{KindCustomer, SourceBillingDocuments, "confirmed", ClassBilled},
		{KindCustomer, SourceBillingDocuments, "POSTED", ClassBilled},
		{KindCustomer, SourceBillingDocuments, "DRAFT", ClassPending},
		{KindCustomer, SourceBillingDocuments, "void", ClassVoid},
		{KindVendor, SourceBillingDocuments, "Cancelled", ClassVoid},
		{KindCustomer, SourceQuotes, "accepted", ClassPending},
		{KindVendor, SourceQuotes, "confirmed", ClassPending},
		{KindCustomer, SourceTaxRetentions, "final-confirmed", ClassRetained},
		{KindCustomer, SourceTaxRetentions, "FINAL_CONFIRMED", ClassRetained},
		{KindVendor, SourceTaxRetentions, "draft", ClassPending},
		{KindCustomer, SourcePaymentOrders, "confirmed-received", ClassSettled},
		{KindCustomer, SourcePaymentOrders, "Confirmed Paid", ClassSettled},
		{KindVendor, SourcePaymentOrders, "approved", ClassSettled},
		{KindVendor, SourcePaymentOrders, "requested", ClassPending},
		{KindCustomer, SourceNegotiableInstruments, "cleared", ClassSettled},
		{KindVendor, SourceNegotiableInstruments, "deposited", ClassPending},
		{Kind("partner"), SourceBillingDocuments, "confirmed", ClassPending},
		{KindCustomer, SourceType("ledger-note"), "confirmed", ClassPending},
	}
	for _, tc := range cases {
		got := Classify(tc.kind, tc.source, tc.status)
		require.Equal(t, tc.want, got, "%s/%s/%s", tc.kind, tc.source, tc.status)
	}
}

func TestClassificationTableCoversEverySource(t *testing.T) {
	for _, kind := range []Kind{KindCustomer, KindVendor} {
		for _, source := range Sources {
			_, ok := classificationTable[kind][source]
			require.True(t, ok, "missing rule for %s/%s", kind, source)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	require.Equal(t, "confirmed-paid", NormalizeStatus("  CONFIRMED_PAID "))
	require.Equal(t, "final-confirmed", NormalizeStatus("Final Confirmed"))
}
