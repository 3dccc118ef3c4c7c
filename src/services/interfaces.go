// backend/src/services/interfaces.go
package services

import (
	"errors"
	"io"
	"time"

	"github.com/username/bankimport/src/models"
)

// Define common service errors. Resolution failures are typed so the
// batch loop can tell a skippable report from a halting condition.
var (
	ErrUnresolvedCardMask = errors.New("no card matches the mask")
	ErrAmbiguousCardMask  = errors.New("multiple cards match the mask")
	ErrAccountNotFound    = errors.New("account not found")
)

// Ledger is the bookkeeping system operations are forwarded to. It is
// owned by the surrounding accounting application; the engine only ever
// talks to it through this interface. The dedup key passed to
// RegisterOperation is the ledger's token for ignoring an operation it
// has already recorded.
type Ledger interface {
	RegisterOperation(account models.AccountNumber, date time.Time, dedupKey string, opType models.OperationType, amount models.Money, description string) (models.OperationID, error)
	RegisterHoldOperation(account models.AccountNumber, date time.Time, opType models.OperationType, amount models.Money, description string) error
	RegisterCardOperation(id models.OperationID, card models.CardNumber, date time.Time, operationDate time.Time, amount models.Money, mcc models.MccCode) error
	RemoveMatchingHoldOperations(id models.OperationID) error
}

// CardDirectory looks up payment cards by their masked number.
type CardDirectory interface {
	FindCardsByMask(mask string) ([]models.Card, error)
}

// AccountDirectory looks up accounts. FindAccountOfCard answers which
// account owned a card on a given date: cards move between accounts over
// time, so the date matters. Lookups that find nothing return a nil
// account and a nil error.
type AccountDirectory interface {
	FindAccountsByBankAndCurrency(bank models.BankID, currency string) ([]models.Account, error)
	FindAccountOfCard(card models.CardNumber, date time.Time) (*models.Account, error)
	FindAccountByNumber(number models.AccountNumber) (*models.Account, error)
}

// ReportStore discovers pending statement reports and owns their
// processed/unprocessed state.
type ReportStore interface {
	FindAll() ([]models.ReportID, error)
	FindUnprocessed() ([]models.ReportID, error)
	Find(id models.ReportID) (*models.Report, error)
	MarkProcessed(id models.ReportID) error
	Save(name string, content io.Reader) (models.ReportID, error)
}

// ImportService is the engine's entry point for the external trigger and
// the HTTP surface.
type ImportService interface {
	SaveReport(name string, content io.Reader) (models.ReportID, error)
	ListReports(unprocessedOnly bool) ([]models.ReportID, error)
	ProcessReport(id models.ReportID) error
	ProcessNewReports() error
}
