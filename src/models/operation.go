// backend/src/models/operation.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation is the unified, intermediate representation of one statement
// entry. Each parser is responsible for populating as many of these fields
// as possible directly from the source file; fields the format does not
// carry stay at their zero value (or nil for truly optional ones).
type Operation struct {
	// Timestamp is the operation date and time in the institution's timezone. Required.
	Timestamp time.Time
	// PaymentDate is nil while the operation is an authorization hold.
	PaymentDate *time.Time
	// CardMask is the redacted card number from the export, e.g. "*1234".
	// Empty when the operation is not tied to a card.
	CardMask string

	OperationAmount   decimal.Decimal
	OperationCurrency string
	PaymentAmount     decimal.Decimal
	PaymentCurrency   string

	Cashback decimal.NullDecimal
	Bonus    decimal.NullDecimal

	Category    string
	Description string

	// Mcc is nil when the export carries no merchant category code.
	Mcc *MccCode

	// AccountHint is set only when the source format names the account
	// explicitly (OFX does, CSV does not).
	AccountHint AccountNumber
}

// IsHold reports whether the operation is an authorization hold that has
// not settled yet. Holds are recognized solely by the missing payment date.
func (op Operation) IsHold() bool {
	return op.PaymentDate == nil
}

// IsCardOperation reports whether the operation carries enough card detail
// to be registered as a card operation in the ledger.
func (op Operation) IsCardOperation() bool {
	return op.Mcc != nil && op.CardMask != ""
}
