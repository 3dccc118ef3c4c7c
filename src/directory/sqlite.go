// backend/src/directory/sqlite.go
package directory

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/bankimport/src/models"
)

const (
	dateLayout      = "2006-01-02"
	validThruLayout = "2006-01"

	ckAccountsByBankAndCurrency = "accounts_%s_%s"

	defaultCacheExpiration = 5 * time.Minute
	cacheCleanupInterval   = 10 * time.Minute
)

// SQLDirectory answers card and account lookups from the accounting
// database. Account lists are nearly static master data, so they sit in
// a short-lived TTL cache. Card-mask resolution is not cached here; the
// per-run resolution context upstream owns that.
type SQLDirectory struct {
	db          *sql.DB
	lookupCache *cache.Cache
}

func NewSQLDirectory(db *sql.DB) *SQLDirectory {
	return &SQLDirectory{
		db:          db,
		lookupCache: cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}
}

// FindCardsByMask matches a masked number like "*1234" against full card
// numbers by suffix.
func (d *SQLDirectory) FindCardsByMask(mask string) ([]models.Card, error) {
	pattern := strings.ReplaceAll(mask, "*", "%")

	rows, err := d.db.Query(`SELECT card_number, bank_id, valid_thru FROM cards WHERE card_number LIKE ?`, pattern)
	if err != nil {
		return nil, fmt.Errorf("directory: cards by mask %s: %w", mask, err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var number, bank, validThru string
		if err := rows.Scan(&number, &bank, &validThru); err != nil {
			return nil, fmt.Errorf("directory: cards by mask %s: %w", mask, err)
		}
		thru, err := time.Parse(validThruLayout, validThru)
		if err != nil {
			return nil, fmt.Errorf("directory: card %s has malformed valid_thru %q: %w", number, validThru, err)
		}
		cards = append(cards, models.Card{Number: models.CardNumber(number), Issuer: models.BankID(bank), ValidThru: thru})
	}
	return cards, rows.Err()
}

func (d *SQLDirectory) FindAccountsByBankAndCurrency(bank models.BankID, currency string) ([]models.Account, error) {
	cacheKey := fmt.Sprintf(ckAccountsByBankAndCurrency, bank, currency)
	if cached, found := d.lookupCache.Get(cacheKey); found {
		return cached.([]models.Account), nil
	}

	rows, err := d.db.Query(`
		SELECT account_number, bank_id, currency, owner
		FROM accounts WHERE bank_id = ? AND currency = ?
		ORDER BY account_number`, string(bank), currency)
	if err != nil {
		return nil, fmt.Errorf("directory: accounts for %s/%s: %w", bank, currency, err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: accounts for %s/%s: %w", bank, currency, err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	d.lookupCache.Set(cacheKey, accounts, cache.DefaultExpiration)
	return accounts, nil
}

// FindAccountOfCard returns the account that owned the card on the given
// date, or nil when no ownership interval covers it.
func (d *SQLDirectory) FindAccountOfCard(card models.CardNumber, date time.Time) (*models.Account, error) {
	day := date.Format(dateLayout)
	row := d.db.QueryRow(`
		SELECT a.account_number, a.bank_id, a.currency, a.owner
		FROM accounts a
		JOIN card_accounts ca ON ca.account_number = a.account_number
		WHERE ca.card_number = ? AND ca.from_date <= ? AND (ca.to_date IS NULL OR ca.to_date >= ?)`,
		string(card), day, day)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: account of card %s: %w", card, err)
	}
	return &account, nil
}

func (d *SQLDirectory) FindAccountByNumber(number models.AccountNumber) (*models.Account, error) {
	row := d.db.QueryRow(`
		SELECT account_number, bank_id, currency, owner
		FROM accounts WHERE account_number = ?`, string(number))

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("directory: account %s: %w", number, err)
	}
	return &account, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (models.Account, error) {
	var number, bank, currency, owner string
	if err := row.Scan(&number, &bank, &currency, &owner); err != nil {
		return models.Account{}, err
	}
	return models.Account{
		Number:   models.AccountNumber(number),
		Bank:     models.BankID(bank),
		Currency: currency,
		Owner:    owner,
	}, nil
}
