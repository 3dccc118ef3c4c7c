// backend/src/parsers/tbank/normalize.go
package tbank

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReportTimezone is the fixed timezone of the institution. Every
// timestamp emitted by the parsers is expressed in this zone.
const ReportTimezone = "Europe/Moscow"

const (
	dateLayout      = "02.01.2006"
	timestampLayout = "02.01.2006 15:04:05"
)

var reportLocation = loadReportLocation()

func loadReportLocation() *time.Location {
	loc, err := time.LoadLocation(ReportTimezone)
	if err != nil {
		// Containers without tzdata still need a correct offset;
		// the zone has been fixed at UTC+3 with no DST.
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// mapCurrency remaps the modern code of the local currency to the legacy
// code the ledger has used historically. All other codes pass through.
func mapCurrency(code string) string {
	if strings.EqualFold(code, "RUB") {
		return "RUR"
	}
	return code
}

// parseDecimal reads an exported amount that may use either a comma or a
// dot as the decimal separator, with optional group spacing. The second
// return value is false when the text does not contain a number; callers
// decide whether that is recoverable for the field at hand.
func parseDecimal(raw string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, "\"")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseDateOrNil reads an optional dd.MM.yyyy date in the report timezone.
func parseDateOrNil(raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), reportLocation)
	if err != nil {
		return nil
	}
	return &t
}

// ofxTimestampPattern matches the institution's proprietary OFX timestamp:
// yyyyMMddHHmmss[.SSS][±HH[MM]:zonename]. Offset minutes default to 0.
var ofxTimestampPattern = regexp.MustCompile(`^(\d{14})(?:\.(\d{3}))?\[([+-]\d{1,2})(\d{0,2}):(\w+)]$`)

// parseOfxTimestamp decodes the proprietary timestamp and converts it into
// the report timezone. Any deviation from the pattern is an error: the
// posted timestamp is mandatory and cannot be recovered.
func parseOfxTimestamp(raw string) (time.Time, error) {
	m := ofxTimestampPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, fmt.Errorf("malformed ofx timestamp %q", raw)
	}

	base, err := time.Parse("20060102150405", m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed ofx timestamp %q: %w", raw, err)
	}

	millis := 0
	if m[2] != "" {
		millis, _ = strconv.Atoi(m[2])
	}

	offsetHours, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed ofx offset in %q: %w", raw, err)
	}
	offsetMinutes := 0
	if m[4] != "" {
		if offsetMinutes, err = strconv.Atoi(m[4]); err != nil {
			return time.Time{}, fmt.Errorf("malformed ofx offset in %q: %w", raw, err)
		}
	}
	offsetSeconds := offsetHours * 60 * 60
	if offsetHours < 0 {
		offsetSeconds -= offsetMinutes * 60
	} else {
		offsetSeconds += offsetMinutes * 60
	}

	zone := time.FixedZone(m[5], offsetSeconds)
	t := time.Date(base.Year(), base.Month(), base.Day(),
		base.Hour(), base.Minute(), base.Second(), millis*int(time.Millisecond), zone)

	return t.In(reportLocation), nil
}

// dateOf truncates a timestamp to midnight, keeping its location.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
