// Package reconcile builds counterparty ledger statements from independent
// record sources: it resolves the counterparty, fans out one query per source,
// normalises the records into transactions, orders them and derives the
// settlement balance.
package reconcile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes customer from vendor counterparties.
type Kind string

const (
	KindCustomer Kind = "customer"
	KindVendor   Kind = "vendor"
)

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	return k == KindCustomer || k == KindVendor
}

// EntityRef addresses a counterparty. Customers and vendors live in separate
// tables so the id alone is not unique.
type EntityRef struct {
	Kind Kind  `json:"kind" validate:"required,oneof=customer vendor"`
	ID   int64 `json:"id" validate:"required,gt=0"`
}

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + strconv.FormatInt(r.ID, 10)
}

// ParseEntityRef parses the "kind:id" form produced by EntityRef.String.
func ParseEntityRef(raw string) (EntityRef, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return EntityRef{}, fmt.Errorf("reconcile: entity ref %q: expected kind:id", raw)
	}
	ref := EntityRef{Kind: Kind(strings.ToLower(strings.TrimSpace(kind)))}
	if !ref.Kind.Valid() {
		return EntityRef{}, fmt.Errorf("reconcile: entity ref %q: unknown kind", raw)
	}
	value, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || value <= 0 {
		return EntityRef{}, fmt.Errorf("reconcile: entity ref %q: invalid id", raw)
	}
	ref.ID = value
	return ref, nil
}

// Entity is the counterparty snapshot read at the start of a refresh cycle.
// DisplayName is used verbatim by the name-keyed sources.
type Entity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Kind        Kind   `json:"kind"`
}

// Ref returns the address of the entity.
func (e Entity) Ref() EntityRef {
	return EntityRef{Kind: e.Kind, ID: e.ID}
}

// SourceType names one of the independent record sources.
type SourceType string

const (
	SourceBillingDocuments      SourceType = "billing-document"
	SourceQuotes                SourceType = "quote"
	SourceTaxRetentions         SourceType = "tax-retention"
	SourcePaymentOrders         SourceType = "payment-order"
	SourceNegotiableInstruments SourceType = "negotiable-instrument"
)

// Sources lists every source in tie-break priority order.
var Sources = []SourceType{
	SourceBillingDocuments,
	SourceQuotes,
	SourceTaxRetentions,
	SourcePaymentOrders,
	SourceNegotiableInstruments,
}

func (s SourceType) priority() int {
	for i, src := range Sources {
		if src == s {
			return i
		}
	}
	return len(Sources)
}

// SettlementClass is the canonical bucket that drives balance arithmetic.
type SettlementClass string

const (
	ClassBilled   SettlementClass = "billed"
	ClassSettled  SettlementClass = "settled"
	ClassRetained SettlementClass = "retained"
	ClassPending  SettlementClass = "pending"
	ClassVoid     SettlementClass = "void"
)

func (c SettlementClass) valid() bool {
	switch c {
	case ClassBilled, ClassSettled, ClassRetained, ClassPending, ClassVoid:
		return true
	}
	return false
}

// Transaction is the canonical record every source is normalised into.
// Amount is never negative; SettlementClass carries the direction.
type Transaction struct {
	ID              string          `json:"id"`
	SourceType      SourceType      `json:"source_type"`
	SourceRecordID  string          `json:"source_record_id"`
	Date            time.Time       `json:"date"`
	ReferenceCode   string          `json:"reference_code"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	SettlementClass SettlementClass `json:"settlement_class"`
	Description     string          `json:"description"`
}

// BalanceSummary aggregates the settlement position of one counterparty.
// Outstanding is max(0, TotalBilled - TotalSettled - TotalRetained).
type BalanceSummary struct {
	EntityID         int64           `json:"entity_id"`
	TotalBilled      decimal.Decimal `json:"total_billed"`
	TotalSettled     decimal.Decimal `json:"total_settled"`
	TotalRetained    decimal.Decimal `json:"total_retained"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	TransactionCount int             `json:"transaction_count"`
}

func zeroSummary(entityID int64) BalanceSummary {
	return BalanceSummary{
		EntityID:      entityID,
		TotalBilled:   decimal.Zero,
		TotalSettled:  decimal.Zero,
		TotalRetained: decimal.Zero,
		Outstanding:   decimal.Zero,
	}
}

// WarningCode classifies a recoverable or terminal problem of a refresh cycle.
type WarningCode string

const (
	WarningEntityNotFound  WarningCode = "ENTITY_NOT_FOUND"
	WarningSourceFetch     WarningCode = "SOURCE_FETCH_ERROR"
	WarningMalformedRecord WarningCode = "MALFORMED_RECORD"
	WarningComputation     WarningCode = "COMPUTATION_ERROR"
)

// Warning is a structured, non-fatal problem reported next to the result.
type Warning struct {
	Code     WarningCode `json:"code"`
	Source   SourceType  `json:"source,omitempty"`
	RecordID string      `json:"record_id,omitempty"`
	Message  string      `json:"message"`
}

func warningFor(err error, source SourceType, recordID string) Warning {
	code := WarningSourceFetch
	switch {
	case errors.Is(err, ErrEntityNotFound):
		code = WarningEntityNotFound
	case errors.Is(err, ErrMalformedRecord):
		code = WarningMalformedRecord
	case errors.Is(err, ErrComputation):
		code = WarningComputation
	}
	return Warning{Code: code, Source: source, RecordID: recordID, Message: err.Error()}
}

// Result is the output of one refresh cycle.
type Result struct {
	Entity       Entity         `json:"entity"`
	Transactions []Transaction  `json:"transactions"`
	Summary      BalanceSummary `json:"summary"`
	Warnings     []Warning      `json:"warnings"`
}

// State returns the terminal state the result corresponds to.
func (r Result) State() State {
	if len(r.Warnings) == 0 {
		return StateSuccess
	}
	return StatePartialFailure
}

// HasWarning reports whether any warning carries the given code.
func (r Result) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Terminal reports whether the cycle stopped before any source was queried
// because the counterparty could not be resolved.
func (r Result) Terminal() bool {
	for _, w := range r.Warnings {
		if w.Source == "" && (w.Code == WarningEntityNotFound || w.Code == WarningSourceFetch) {
			return true
		}
	}
	return false
}
