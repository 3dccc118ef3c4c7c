// backend/src/services/resolver.go
package services

import (
	"fmt"
	"time"

	"github.com/username/bankimport/src/models"
)

// resolutionContext caches cards resolved by mask during a single report
// run. A fresh context is built for every run and discarded with it, so
// two runs over different reports both hit the directory again.
type resolutionContext map[string]models.Card

// resolver attaches a card and an account to each canonical operation.
type resolver struct {
	cards    CardDirectory
	accounts AccountDirectory
}

// resolveCard maps a card mask to the unique card it redacts. An empty
// mask means the operation has no card. Zero or multiple directory
// matches are typed failures that abort the whole report upstream.
func (r *resolver) resolveCard(ctx resolutionContext, mask string) (*models.Card, error) {
	if mask == "" {
		return nil, nil
	}
	if card, ok := ctx[mask]; ok {
		return &card, nil
	}

	found, err := r.cards.FindCardsByMask(mask)
	if err != nil {
		return nil, fmt.Errorf("card lookup for mask %s: %w", mask, err)
	}

	var issued []models.Card
	for _, card := range found {
		if card.Issuer == models.TBank {
			issued = append(issued, card)
		}
	}

	switch len(issued) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedCardMask, mask)
	case 1:
		ctx[mask] = issued[0]
		card := issued[0]
		return &card, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousCardMask, mask)
	}
}

// resolveAccount picks the target account for an operation. With a card,
// the account is whichever one owned the card on the relevant date. Card
// or not, an operation with an explicit account hint resolves directly.
// The remaining operations fall back to the institution's account in the
// operation currency with the smallest number, a deterministic tie-break
// when several accounts share a currency.
func (r *resolver) resolveAccount(card *models.Card, op models.Operation) (*models.Account, error) {
	if card != nil {
		date := resolutionDate(op)
		account, err := r.accounts.FindAccountOfCard(card.Number, date)
		if err != nil {
			return nil, fmt.Errorf("account lookup for card %s: %w", card.Number, err)
		}
		if account == nil {
			return nil, fmt.Errorf("%w: card %s on %s", ErrAccountNotFound, card.Number, date.Format("2006-01-02"))
		}
		return account, nil
	}

	if op.AccountHint != "" {
		account, err := r.accounts.FindAccountByNumber(op.AccountHint)
		if err != nil {
			return nil, fmt.Errorf("account lookup for %s: %w", op.AccountHint, err)
		}
		if account == nil {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, op.AccountHint)
		}
		return account, nil
	}

	accounts, err := r.accounts.FindAccountsByBankAndCurrency(models.TBank, op.OperationCurrency)
	if err != nil {
		return nil, fmt.Errorf("account lookup for currency %s: %w", op.OperationCurrency, err)
	}
	var smallest *models.Account
	for i := range accounts {
		if smallest == nil || accounts[i].Number < smallest.Number {
			smallest = &accounts[i]
		}
	}
	if smallest == nil {
		return nil, fmt.Errorf("%w: no account for currency %s", ErrAccountNotFound, op.OperationCurrency)
	}
	return smallest, nil
}

// resolutionDate is the date card ownership is evaluated at: the payment
// date for settled operations, the operation date for holds (which have
// no payment date yet).
func resolutionDate(op models.Operation) time.Time {
	if op.PaymentDate != nil {
		return *op.PaymentDate
	}
	return dateOf(op.Timestamp)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
