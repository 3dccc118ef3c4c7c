// backend/src/services/dedup.go
package services

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/bankimport/src/models"
)

// dedupKey derives the idempotency token for a settled operation from its
// timestamp, card mask and operation amount. The ledger treats the key as
// a dedup token, so reprocessing a report after a partial failure cannot
// record the same operation twice.
//
// The text layout feeding the digest must never change: keys for
// statements imported in earlier years are already stored on the ledger
// side, and a layout change would resurrect every one of them as a new
// operation.
func dedupKey(op models.Operation) string {
	payload := timestampText(op.Timestamp) + "_" + op.CardMask + "_" + amountText(op.OperationAmount)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// timestampText renders the timestamp with the seconds omitted when they
// are zero.
func timestampText(t time.Time) string {
	if t.Second() == 0 {
		return t.Format("2006-01-02T15:04")
	}
	return t.Format("2006-01-02T15:04:05")
}

// amountText renders the amount with at least one fractional digit, so
// 2000 becomes "2000.0" while 113.5 stays "113.5".
func amountText(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
