// backend/src/parsers/tbank/ofx.go
package tbank

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/bankimport/src/models"
	"golang.org/x/text/encoding/charmap"
)

// OFXParser reads the institution's OFX (XML flavoured) statement export.
//
// The document is scanned forward-only, token by token, so memory stays
// bounded for large exports. Three states drive the scan: outside any
// statement, inside a statement with a known account, and inside a
// transaction element being decoded.
type OFXParser struct{}

func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

type ofxBankAccount struct {
	BankID      string `xml:"BANKID"`
	AccountID   string `xml:"ACCTID"`
	AccountType string `xml:"ACCTTYPE"`
}

type ofxTransaction struct {
	Type     string `xml:"TRNTYPE"`
	Posted   string `xml:"DTPOSTED"`
	Amount   string `xml:"TRNAMT"`
	FitID    string `xml:"FITID"`
	Name     string `xml:"NAME"`
	Memo     string `xml:"MEMO"`
	Currency struct {
		Code string `xml:"CURSYM"`
		Rate string `xml:"CURRATE"`
	} `xml:"CURRENCY"`
}

// Parse converts the export into canonical operations in file order.
func (p *OFXParser) Parse(r io.Reader) ([]models.Operation, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = ofxCharsetReader

	var operations []models.Operation
	var currentAccount models.AccountNumber

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ofx parser: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch strings.ToUpper(t.Name.Local) {
			case "BANKACCTFROM":
				var account ofxBankAccount
				if err := decoder.DecodeElement(&account, &t); err != nil {
					return nil, fmt.Errorf("ofx parser: account descriptor: %w", err)
				}
				currentAccount = models.AccountNumber(account.AccountID)
			case "STMTTRN":
				var tx ofxTransaction
				if err := decoder.DecodeElement(&tx, &t); err != nil {
					return nil, fmt.Errorf("ofx parser: transaction: %w", err)
				}
				op, err := tx.operation(currentAccount)
				if err != nil {
					return nil, fmt.Errorf("ofx parser: %w", err)
				}
				operations = append(operations, op)
			}
		case xml.EndElement:
			// The account context ends with the statement response,
			// whatever happened to the nesting in between.
			if strings.ToUpper(t.Name.Local) == "STMTRS" {
				currentAccount = ""
			}
		}
	}

	return operations, nil
}

func (tx ofxTransaction) operation(account models.AccountNumber) (models.Operation, error) {
	timestamp, err := parseOfxTimestamp(tx.Posted)
	if err != nil {
		return models.Operation{}, err
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(tx.Amount))
	if err != nil {
		return models.Operation{}, fmt.Errorf("malformed transaction amount %q: %w", tx.Amount, err)
	}

	currency := mapCurrency(strings.TrimSpace(tx.Currency.Code))
	if currency == "" {
		return models.Operation{}, fmt.Errorf("transaction %s carries no currency", tx.FitID)
	}

	paymentDate := dateOf(timestamp)

	// OFX exports never carry card data or an MCC; the account, on the
	// other hand, is explicit, unlike in the CSV export.
	return models.Operation{
		Timestamp:         timestamp,
		PaymentDate:       &paymentDate,
		OperationAmount:   amount,
		OperationCurrency: currency,
		PaymentAmount:     amount,
		PaymentCurrency:   currency,
		Category:          tx.Memo,
		Description:       tx.FitID + " " + tx.Name,
		AccountHint:       account,
	}, nil
}

// ofxCharsetReader accepts the legacy single-byte encoding some exports
// still declare, in addition to plain UTF-8.
func ofxCharsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "utf-8", "us-ascii", "":
		return input, nil
	case "windows-1251", "cp1251":
		return charmap.Windows1251.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
}
