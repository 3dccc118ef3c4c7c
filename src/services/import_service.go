// backend/src/services/import_service.go
package services

import (
	"errors"
	"fmt"
	"io"

	"github.com/username/bankimport/src/logger"
	"github.com/username/bankimport/src/models"
	"github.com/username/bankimport/src/storage"
)

type importServiceImpl struct {
	store    ReportStore
	ledger   Ledger
	cards    CardDirectory
	accounts AccountDirectory
}

func NewImportService(store ReportStore, ledger Ledger, cards CardDirectory, accounts AccountDirectory) ImportService {
	return &importServiceImpl{
		store:    store,
		ledger:   ledger,
		cards:    cards,
		accounts: accounts,
	}
}

func (s *importServiceImpl) SaveReport(name string, content io.Reader) (models.ReportID, error) {
	return s.store.Save(name, content)
}

func (s *importServiceImpl) ListReports(unprocessedOnly bool) ([]models.ReportID, error) {
	if unprocessedOnly {
		return s.store.FindUnprocessed()
	}
	return s.store.FindAll()
}

// resolvedOperation pairs a canonical operation with the card and account
// it was resolved against.
type resolvedOperation struct {
	op      models.Operation
	card    *models.Card
	account models.AccountNumber
}

// ProcessReport runs one report end to end: parse, resolve, dispatch to
// the ledger, mark processed. Resolution for every operation completes
// before the first ledger call, so a resolution failure anywhere in the
// file aborts the report with no ledger effects at all. A report is only
// marked processed after every dispatch succeeded; an aborted report
// stays unprocessed and is retried in full on the next cycle, relying on
// dedup keys for safety.
func (s *importServiceImpl) ProcessReport(id models.ReportID) error {
	report, err := s.store.Find(id)
	if err != nil {
		return err
	}

	res := &resolver{cards: s.cards, accounts: s.accounts}
	runCtx := make(resolutionContext)

	resolved := make([]resolvedOperation, 0, len(report.Operations))
	for i, op := range report.Operations {
		card, err := res.resolveCard(runCtx, op.CardMask)
		if err != nil {
			return fmt.Errorf("report %s, operation %d: %w", id.Name, i+1, err)
		}
		account, err := res.resolveAccount(card, op)
		if err != nil {
			return fmt.Errorf("report %s, operation %d: %w", id.Name, i+1, err)
		}
		resolved = append(resolved, resolvedOperation{op: op, card: card, account: account.Number})
	}

	for i, r := range resolved {
		if err := s.dispatch(r); err != nil {
			return fmt.Errorf("report %s, operation %d: %w", id.Name, i+1, err)
		}
	}

	return s.store.MarkProcessed(id)
}

// dispatch forwards one resolved operation to the ledger.
func (s *importServiceImpl) dispatch(r resolvedOperation) error {
	op := r.op

	opType := models.Deposit
	if op.OperationAmount.IsNegative() {
		opType = models.Withdraw
	}
	amount := models.Money{Amount: op.OperationAmount.Abs(), Currency: op.OperationCurrency}

	if op.IsHold() {
		return s.ledger.RegisterHoldOperation(r.account, dateOf(op.Timestamp), opType, amount, op.Description)
	}

	operationID, err := s.ledger.RegisterOperation(r.account, *op.PaymentDate, dedupKey(op), opType, amount, op.Description)
	if err != nil {
		return fmt.Errorf("register operation: %w", err)
	}

	if op.IsCardOperation() && r.card != nil {
		if err := s.ledger.RegisterCardOperation(operationID, r.card.Number, *op.PaymentDate, dateOf(op.Timestamp), amount, *op.Mcc); err != nil {
			return fmt.Errorf("register card operation: %w", err)
		}
	}

	// A settlement retires whatever hold was registered for it earlier.
	if err := s.ledger.RemoveMatchingHoldOperations(operationID); err != nil {
		return fmt.Errorf("remove matching holds: %w", err)
	}
	return nil
}

// ProcessNewReports is the batch entry point the external trigger calls.
// Reports that cannot be processed right now (gone from disk, unresolved
// or ambiguous card, no account) are logged and skipped so the rest of
// the batch still runs; they stay unprocessed for the next cycle.
// Anything else halts the batch.
func (s *importServiceImpl) ProcessNewReports() error {
	ids, err := s.store.FindUnprocessed()
	if err != nil {
		return err
	}

	logger.L.Info("Found unprocessed reports", "count", len(ids))

	for _, id := range ids {
		logger.L.Info("Start processing of report", "report", id.String())
		err := s.ProcessReport(id)
		switch {
		case err == nil:
			logger.L.Info("Processing of report finished", "report", id.String())
		case isSkippable(err):
			logger.L.Warn("Processing failed for report", "report", id.String(), "error", err)
		default:
			return fmt.Errorf("processing halted at report %s: %w", id.Name, err)
		}
	}
	return nil
}

func isSkippable(err error) bool {
	return errors.Is(err, storage.ErrReportNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrUnresolvedCardMask) ||
		errors.Is(err, ErrAmbiguousCardMask)
}
