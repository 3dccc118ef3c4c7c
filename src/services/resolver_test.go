package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/bankimport/src/models"
)

// fakeCardDirectory counts lookups so tests can assert on caching.
type fakeCardDirectory struct {
	cards map[string][]models.Card
	calls map[string]int
	err   error
}

func newFakeCardDirectory() *fakeCardDirectory {
	return &fakeCardDirectory{
		cards: make(map[string][]models.Card),
		calls: make(map[string]int),
	}
}

func (d *fakeCardDirectory) FindCardsByMask(mask string) ([]models.Card, error) {
	d.calls[mask]++
	if d.err != nil {
		return nil, d.err
	}
	return d.cards[mask], nil
}

type fakeAccountDirectory struct {
	byCurrency map[string][]models.Account
	byCard     map[models.CardNumber]*models.Account
	byNumber   map[models.AccountNumber]*models.Account

	cardLookupDates []time.Time
	err             error
}

func newFakeAccountDirectory() *fakeAccountDirectory {
	return &fakeAccountDirectory{
		byCurrency: make(map[string][]models.Account),
		byCard:     make(map[models.CardNumber]*models.Account),
		byNumber:   make(map[models.AccountNumber]*models.Account),
	}
}

func (d *fakeAccountDirectory) FindAccountsByBankAndCurrency(bank models.BankID, currency string) ([]models.Account, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.byCurrency[currency], nil
}

func (d *fakeAccountDirectory) FindAccountOfCard(card models.CardNumber, date time.Time) (*models.Account, error) {
	d.cardLookupDates = append(d.cardLookupDates, date)
	if d.err != nil {
		return nil, d.err
	}
	return d.byCard[card], nil
}

func (d *fakeAccountDirectory) FindAccountByNumber(number models.AccountNumber) (*models.Account, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.byNumber[number], nil
}

var msk = time.FixedZone("MSK", 3*60*60)

func TestResolveCard(t *testing.T) {
	issued := models.Card{Number: "5536910000001234", Issuer: models.TBank}
	foreign := models.Card{Number: "4276380000001234", Issuer: "OTHERBANK"}

	t.Run("empty mask means no card", func(t *testing.T) {
		cards := newFakeCardDirectory()
		r := &resolver{cards: cards, accounts: newFakeAccountDirectory()}

		card, err := r.resolveCard(make(resolutionContext), "")
		require.NoError(t, err)
		assert.Nil(t, card)
		assert.Empty(t, cards.calls)
	})

	t.Run("single issued card resolves and is cached for the run", func(t *testing.T) {
		cards := newFakeCardDirectory()
		cards.cards["*1234"] = []models.Card{issued, foreign}
		r := &resolver{cards: cards, accounts: newFakeAccountDirectory()}
		ctx := make(resolutionContext)

		card, err := r.resolveCard(ctx, "*1234")
		require.NoError(t, err)
		require.NotNil(t, card)
		assert.Equal(t, issued.Number, card.Number)

		_, err = r.resolveCard(ctx, "*1234")
		require.NoError(t, err)
		assert.Equal(t, 1, cards.calls["*1234"])
	})

	t.Run("fresh run context hits the directory again", func(t *testing.T) {
		cards := newFakeCardDirectory()
		cards.cards["*1234"] = []models.Card{issued}
		r := &resolver{cards: cards, accounts: newFakeAccountDirectory()}

		_, err := r.resolveCard(make(resolutionContext), "*1234")
		require.NoError(t, err)
		_, err = r.resolveCard(make(resolutionContext), "*1234")
		require.NoError(t, err)
		assert.Equal(t, 2, cards.calls["*1234"])
	})

	t.Run("no issued match", func(t *testing.T) {
		cards := newFakeCardDirectory()
		cards.cards["*1234"] = []models.Card{foreign}
		r := &resolver{cards: cards, accounts: newFakeAccountDirectory()}

		_, err := r.resolveCard(make(resolutionContext), "*1234")
		assert.True(t, errors.Is(err, ErrUnresolvedCardMask))
	})

	t.Run("ambiguous mask", func(t *testing.T) {
		cards := newFakeCardDirectory()
		cards.cards["*1234"] = []models.Card{issued, {Number: "5536910000005678", Issuer: models.TBank}}
		r := &resolver{cards: cards, accounts: newFakeAccountDirectory()}

		_, err := r.resolveCard(make(resolutionContext), "*1234")
		assert.True(t, errors.Is(err, ErrAmbiguousCardMask))
	})
}

func TestResolveAccount(t *testing.T) {
	card := &models.Card{Number: "5536910000001234", Issuer: models.TBank}

	t.Run("card ownership wins and is checked on the payment date", func(t *testing.T) {
		accounts := newFakeAccountDirectory()
		owner := models.Account{Number: "40817810000016000001", Bank: models.TBank, Currency: "RUR"}
		accounts.byCard[card.Number] = &owner
		r := &resolver{cards: newFakeCardDirectory(), accounts: accounts}

		paymentDate := time.Date(2020, time.March, 11, 0, 0, 0, 0, msk)
		op := models.Operation{
			Timestamp:   time.Date(2020, time.March, 9, 16, 26, 49, 0, msk),
			PaymentDate: &paymentDate,
		}
		got, err := r.resolveAccount(card, op)
		require.NoError(t, err)
		assert.Equal(t, owner.Number, got.Number)
		require.Len(t, accounts.cardLookupDates, 1)
		assert.Equal(t, paymentDate, accounts.cardLookupDates[0])
	})

	t.Run("holds check ownership on the operation date", func(t *testing.T) {
		accounts := newFakeAccountDirectory()
		accounts.byCard[card.Number] = &models.Account{Number: "40817810000016000001"}
		r := &resolver{cards: newFakeCardDirectory(), accounts: accounts}

		op := models.Operation{Timestamp: time.Date(2020, time.March, 12, 9, 30, 0, 0, msk)}
		_, err := r.resolveAccount(card, op)
		require.NoError(t, err)
		require.Len(t, accounts.cardLookupDates, 1)
		assert.Equal(t, time.Date(2020, time.March, 12, 0, 0, 0, 0, msk), accounts.cardLookupDates[0])
	})

	t.Run("no owner on the date", func(t *testing.T) {
		r := &resolver{cards: newFakeCardDirectory(), accounts: newFakeAccountDirectory()}
		_, err := r.resolveAccount(card, models.Operation{Timestamp: time.Now()})
		assert.True(t, errors.Is(err, ErrAccountNotFound))
	})

	t.Run("explicit account hint", func(t *testing.T) {
		accounts := newFakeAccountDirectory()
		hinted := models.Account{Number: "40817810000016000002"}
		accounts.byNumber[hinted.Number] = &hinted
		r := &resolver{cards: newFakeCardDirectory(), accounts: accounts}

		got, err := r.resolveAccount(nil, models.Operation{AccountHint: hinted.Number})
		require.NoError(t, err)
		assert.Equal(t, hinted.Number, got.Number)
	})

	t.Run("unknown hint", func(t *testing.T) {
		r := &resolver{cards: newFakeCardDirectory(), accounts: newFakeAccountDirectory()}
		_, err := r.resolveAccount(nil, models.Operation{AccountHint: "40817810000016999999"})
		assert.True(t, errors.Is(err, ErrAccountNotFound))
	})

	t.Run("currency fallback picks the smallest account number", func(t *testing.T) {
		accounts := newFakeAccountDirectory()
		accounts.byCurrency["RUR"] = []models.Account{
			{Number: "40817810000016000003", Currency: "RUR"},
			{Number: "40817810000016000001", Currency: "RUR"},
			{Number: "40817810000016000002", Currency: "RUR"},
		}
		r := &resolver{cards: newFakeCardDirectory(), accounts: accounts}

		got, err := r.resolveAccount(nil, models.Operation{OperationCurrency: "RUR", OperationAmount: decimal.NewFromInt(-50)})
		require.NoError(t, err)
		assert.Equal(t, models.AccountNumber("40817810000016000001"), got.Number)
	})

	t.Run("no account in the currency", func(t *testing.T) {
		r := &resolver{cards: newFakeCardDirectory(), accounts: newFakeAccountDirectory()}
		_, err := r.resolveAccount(nil, models.Operation{OperationCurrency: "USD"})
		assert.True(t, errors.Is(err, ErrAccountNotFound))
	})
}
