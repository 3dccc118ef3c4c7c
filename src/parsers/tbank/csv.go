// backend/src/parsers/tbank/csv.go
package tbank

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/bankimport/src/models"
	"golang.org/x/text/encoding/charmap"
)

// Column headers of the bank's CSV export. The export is localized and
// encoded in Windows-1251 with ";" as the field delimiter.
const (
	colStatus            = "Статус"
	colOperationDate     = "Дата операции"
	colPaymentDate       = "Дата платежа"
	colCardNumber        = "Номер карты"
	colOperationAmount   = "Сумма операции"
	colOperationCurrency = "Валюта операции"
	colPaymentAmount     = "Сумма платежа"
	colPaymentCurrency   = "Валюта платежа"
	colCashback          = "Кэшбэк"
	colCategory          = "Категория"
	colMcc               = "MCC"
	colDescription       = "Описание"
	colBonus             = "Бонусы (включая кэшбэк)"
)

// statusFailed marks rows the bank itself rejected; they never become operations.
const statusFailed = "FAILED"

// CSVParser reads the institution's CSV statement export.
type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse converts the export into canonical operations in file order.
// Rows with a FAILED status are dropped. Optional numeric fields that do
// not parse become absent; a malformed operation timestamp or a malformed
// mandatory amount/currency fails the whole report.
func (p *CSVParser) Parse(r io.Reader) ([]models.Operation, error) {
	reader := csv.NewReader(charmap.Windows1251.NewDecoder().Reader(r))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("csv parser: failed to read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colStatus, colOperationDate, colOperationAmount, colOperationCurrency, colPaymentAmount, colPaymentCurrency, colDescription} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("csv parser: missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var operations []models.Operation
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv parser: line %d: %w", line, err)
		}

		if strings.EqualFold(strings.TrimSpace(field(record, colStatus)), statusFailed) {
			continue
		}

		timestamp, err := time.ParseInLocation(timestampLayout, field(record, colOperationDate), reportLocation)
		if err != nil {
			return nil, fmt.Errorf("csv parser: line %d: malformed operation timestamp: %w", line, err)
		}

		operationAmount, ok := parseDecimal(field(record, colOperationAmount))
		if !ok {
			return nil, fmt.Errorf("csv parser: line %d: malformed operation amount %q", line, field(record, colOperationAmount))
		}
		paymentAmount, ok := parseDecimal(field(record, colPaymentAmount))
		if !ok {
			return nil, fmt.Errorf("csv parser: line %d: malformed payment amount %q", line, field(record, colPaymentAmount))
		}

		operationCurrency := mapCurrency(strings.TrimSpace(field(record, colOperationCurrency)))
		paymentCurrency := mapCurrency(strings.TrimSpace(field(record, colPaymentCurrency)))
		if operationCurrency == "" || paymentCurrency == "" {
			return nil, fmt.Errorf("csv parser: line %d: missing currency code", line)
		}

		op := models.Operation{
			Timestamp:         timestamp,
			PaymentDate:       parseDateOrNil(field(record, colPaymentDate)),
			CardMask:          strings.TrimSpace(field(record, colCardNumber)),
			OperationAmount:   operationAmount,
			OperationCurrency: operationCurrency,
			PaymentAmount:     paymentAmount,
			PaymentCurrency:   paymentCurrency,
			Cashback:          optionalDecimal(field(record, colCashback)),
			Bonus:             optionalDecimal(field(record, colBonus)),
			Category:          field(record, colCategory),
			Description:       field(record, colDescription),
		}

		if raw := strings.TrimSpace(field(record, colMcc)); raw != "" {
			mcc, err := models.NewMccCode(raw)
			if err != nil {
				return nil, fmt.Errorf("csv parser: line %d: %w", line, err)
			}
			op.Mcc = &mcc
		}

		operations = append(operations, op)
	}

	return operations, nil
}

// optionalDecimal parses an optional amount; unparsable text means the
// field is absent, not zero.
func optionalDecimal(raw string) decimal.NullDecimal {
	d, ok := parseDecimal(raw)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
