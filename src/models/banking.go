package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BankID identifies an issuing institution.
type BankID string

// TBank is the institution whose statement exports this engine understands.
const TBank BankID = "TBANK"

// AccountNumber is a full bank account number, e.g. "40817810000016123456".
type AccountNumber string

// CardNumber is a full payment card number (PAN).
type CardNumber string

// OperationID identifies an operation recorded by the ledger.
type OperationID string

// OperationType is the direction of an operation from the account's point of view.
type OperationType string

const (
	Deposit  OperationType = "DEPOSIT"
	Withdraw OperationType = "WITHDRAW"
)

// Money is an amount paired with its currency code.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}

// Card is a directory record of a payment card.
type Card struct {
	Number    CardNumber
	Issuer    BankID
	ValidThru time.Time // year-month granularity
}

// Account is a directory record of a bank account.
type Account struct {
	Number   AccountNumber
	Bank     BankID
	Currency string
	Owner    string
}

// MccCode is a 4-digit merchant category code. Bank exports drop leading
// zeros, so construction left-pads shorter codes back to width 4.
type MccCode string

// NewMccCode builds a normalized MCC from the raw export value.
// An empty value is an error: "no MCC" is a nil *MccCode, never an empty one.
func NewMccCode(raw string) (MccCode, error) {
	if raw == "" {
		return "", errors.New("mcc code cannot be empty")
	}
	if len(raw) > 4 {
		return "", fmt.Errorf("mcc code too long: %q", raw)
	}
	return MccCode(strings.Repeat("0", 4-len(raw)) + raw), nil
}

func (m MccCode) String() string { return string(m) }
