// backend/src/ledger/sqlite.go
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/username/bankimport/src/models"
)

const dateLayout = "2006-01-02"

// SQLLedger is the bookkeeping adapter backed by the accounting database.
// The unique index on dedup_key is what makes RegisterOperation
// idempotent: re-registering an operation the ledger already holds
// returns the existing operation id instead of inserting a duplicate.
type SQLLedger struct {
	db *sql.DB
}

func NewSQLLedger(db *sql.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

func (l *SQLLedger) RegisterOperation(account models.AccountNumber, date time.Time, dedupKey string, opType models.OperationType, amount models.Money, description string) (models.OperationID, error) {
	id := uuid.NewString()

	result, err := l.db.Exec(`
		INSERT INTO operations (operation_id, account_number, op_date, dedup_key, op_type, amount, currency, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dedup_key) DO NOTHING`,
		id, string(account), date.Format(dateLayout), dedupKey, string(opType),
		amount.Amount.String(), amount.Currency, description,
	)
	if err != nil {
		return "", fmt.Errorf("ledger: register operation: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("ledger: register operation: %w", err)
	}
	if inserted == 0 {
		// Already recorded in an earlier run; hand back the original id.
		var existing string
		err := l.db.QueryRow(`SELECT operation_id FROM operations WHERE dedup_key = ?`, dedupKey).Scan(&existing)
		if err != nil {
			return "", fmt.Errorf("ledger: look up deduplicated operation: %w", err)
		}
		return models.OperationID(existing), nil
	}

	return models.OperationID(id), nil
}

func (l *SQLLedger) RegisterHoldOperation(account models.AccountNumber, date time.Time, opType models.OperationType, amount models.Money, description string) error {
	_, err := l.db.Exec(`
		INSERT INTO hold_operations (account_number, op_date, op_type, amount, currency, description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(account), date.Format(dateLayout), string(opType),
		amount.Amount.String(), amount.Currency, description,
	)
	if err != nil {
		return fmt.Errorf("ledger: register hold operation: %w", err)
	}
	return nil
}

func (l *SQLLedger) RegisterCardOperation(id models.OperationID, card models.CardNumber, date time.Time, operationDate time.Time, amount models.Money, mcc models.MccCode) error {
	_, err := l.db.Exec(`
		INSERT INTO card_operations (operation_id, card_number, payment_date, operation_date, amount, currency, mcc)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (operation_id) DO NOTHING`,
		string(id), string(card), date.Format(dateLayout), operationDate.Format(dateLayout),
		amount.Amount.String(), amount.Currency, mcc.String(),
	)
	if err != nil {
		return fmt.Errorf("ledger: register card operation: %w", err)
	}
	return nil
}

// RemoveMatchingHoldOperations retires the holds the newly settled
// operation corresponds to: same account, same direction, same amount,
// registered no later than the settlement date.
func (l *SQLLedger) RemoveMatchingHoldOperations(id models.OperationID) error {
	var account, opType, amount, currency, opDate string
	err := l.db.QueryRow(`
		SELECT account_number, op_type, amount, currency, op_date
		FROM operations WHERE operation_id = ?`, string(id),
	).Scan(&account, &opType, &amount, &currency, &opDate)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("ledger: unknown operation %s", id)
	}
	if err != nil {
		return fmt.Errorf("ledger: remove matching holds: %w", err)
	}

	_, err = l.db.Exec(`
		DELETE FROM hold_operations
		WHERE account_number = ? AND op_type = ? AND amount = ? AND currency = ? AND op_date <= ?`,
		account, opType, amount, currency, opDate,
	)
	if err != nil {
		return fmt.Errorf("ledger: remove matching holds: %w", err)
	}
	return nil
}
