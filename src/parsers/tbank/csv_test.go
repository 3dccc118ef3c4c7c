package tbank

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/bankimport/src/models"
	"golang.org/x/text/encoding/charmap"
)

func TestCSVParserParse(t *testing.T) {
	file, err := os.Open("testdata/report.csv")
	require.NoError(t, err)
	defer file.Close()

	operations, err := NewCSVParser().Parse(file)
	require.NoError(t, err)

	// The fixture has five data rows; the FAILED one is dropped.
	require.Len(t, operations, 4)

	t.Run("settled card deposit", func(t *testing.T) {
		op := operations[0]
		assert.Equal(t, time.Date(2020, time.February, 21, 20, 0, 31, 0, reportLocation), op.Timestamp)
		require.NotNil(t, op.PaymentDate)
		assert.Equal(t, time.Date(2020, time.February, 21, 0, 0, 0, 0, reportLocation), *op.PaymentDate)
		assert.Equal(t, "*1234", op.CardMask)
		assert.True(t, op.OperationAmount.Equal(decimal.NewFromInt(2000)))
		assert.Equal(t, "RUR", op.OperationCurrency)
		assert.Equal(t, "RUR", op.PaymentCurrency)
		assert.False(t, op.Cashback.Valid)
		assert.Equal(t, "Финан. услуги", op.Category)
		assert.Equal(t, "Перевод с карты", op.Description)
		require.NotNil(t, op.Mcc)
		assert.Equal(t, models.MccCode("6012"), *op.Mcc)
		assert.False(t, op.IsHold())
	})

	t.Run("withdrawal pads short mcc", func(t *testing.T) {
		op := operations[1]
		assert.True(t, op.OperationAmount.Equal(decimal.NewFromInt(-809)))
		require.NotNil(t, op.Mcc)
		assert.Equal(t, models.MccCode("0742"), *op.Mcc)
		require.True(t, op.Cashback.Valid)
		assert.True(t, op.Cashback.Decimal.Equal(decimal.NewFromInt(8)))
	})

	t.Run("empty payment date means hold", func(t *testing.T) {
		op := operations[2]
		assert.True(t, op.IsHold())
		assert.True(t, op.OperationAmount.Equal(decimal.NewFromFloat(-113.5)))
	})

	t.Run("cardless row with unparsable bonus", func(t *testing.T) {
		op := operations[3]
		assert.Equal(t, "", op.CardMask)
		assert.Nil(t, op.Mcc)
		assert.False(t, op.Bonus.Valid)
		assert.False(t, op.IsCardOperation())
	})
}

func TestCSVParserRejectsMissingColumns(t *testing.T) {
	content := encodeCP1251(t, "Статус;Дата операции\nOK;21.02.2020 20:00:31\n")
	_, err := NewCSVParser().Parse(strings.NewReader(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
}

func TestCSVParserRejectsMalformedTimestamp(t *testing.T) {
	content := encodeCP1251(t,
		"Статус;Дата операции;Дата платежа;Номер карты;Сумма операции;Валюта операции;Сумма платежа;Валюта платежа;Кэшбэк;Категория;MCC;Описание;Бонусы (включая кэшбэк)\n"+
			"OK;not-a-date;;;100;RUB;100;RUB;;;;x;\n")
	_, err := NewCSVParser().Parse(strings.NewReader(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed operation timestamp")
}

func TestCSVParserRejectsMissingCurrency(t *testing.T) {
	content := encodeCP1251(t,
		"Статус;Дата операции;Дата платежа;Номер карты;Сумма операции;Валюта операции;Сумма платежа;Валюта платежа;Кэшбэк;Категория;MCC;Описание;Бонусы (включая кэшбэк)\n"+
			"OK;21.02.2020 20:00:31;;;100;;100;RUB;;;;x;\n")
	_, err := NewCSVParser().Parse(strings.NewReader(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing currency")
}

// encodeCP1251 renders test input the way the bank exports it.
func encodeCP1251(t *testing.T, s string) string {
	t.Helper()
	encoded, err := charmap.Windows1251.NewEncoder().String(s)
	require.NoError(t, err)
	return encoded
}
