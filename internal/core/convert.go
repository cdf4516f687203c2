package core

// convert.go turns raw sheet and JSON values into normalized field values,
// and normalized values into pgtype parameters for the store.
//
// Normalization never fails: unparseable input yields the neutral value of
// the field type ("" for text, 0 for numbers, nil for dates). Spreadsheets
// in the field mix native dates, serial day counts and locale strings in
// the same column, so dates are tried in layers.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NilSentinel is the placeholder operations staff type into empty cells.
const NilSentinel = "NILL"

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dayMonthYear matches D/M/Y strings with "/", "." or "-" separators.
var dayMonthYear = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})$`)

var genericDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"Mon Jan 2 2006",
	"20060102",
}

// serialEpoch is day zero of spreadsheet serial dates.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const msPerDay = 86_400_000

// maxSerial is 9999-12-31.
const maxSerial = 2_958_465

// NormalizeValue coerces a raw value to the type of spec.
func NormalizeValue(v any, spec FieldSpec) any {
	switch spec.Type {
	case FieldInt:
		return NormalizeInt(v)
	case FieldDecimal:
		return NormalizeNumber(v)
	case FieldDate:
		if t, ok := NormalizeDate(v); ok {
			return t
		}
		return nil
	default:
		s := NormalizeText(v)
		if spec.Trim {
			s = strings.TrimSpace(s)
		}
		if spec.Normalizer != nil && strings.TrimSpace(s) != "" {
			s = spec.Normalizer(s)
		}
		if strings.TrimSpace(s) == "" && spec.Default != "" {
			s = spec.Default
		}
		return s
	}
}

// NormalizeText stringifies a raw value. nil and the NILL sentinel become "".
func NormalizeText(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		s = val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return ""
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = strconv.FormatBool(val)
	case decimal.Decimal:
		s = val.String()
	case time.Time:
		if val.IsZero() {
			return ""
		}
		s = val.Format("2006-01-02")
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	if strings.TrimSpace(s) == NilSentinel {
		return ""
	}
	return s
}

// NormalizeNumber parses a raw value as a decimal. Currency symbols,
// thousands separators and accounting parentheses are accepted. Anything
// unparseable or non-finite is zero.
func NormalizeNumber(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(val)
	case float32:
		return NormalizeNumber(float64(val))
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case string:
		s, ok := cleanNumeric(val)
		if !ok {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

// NormalizeInt parses a raw value as an integer, truncating fractions.
func NormalizeInt(v any) int64 {
	d := NormalizeNumber(v)
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0
	}
	return d.IntPart()
}

// cleanNumeric strips presentation noise and reports whether the rest is numeric.
func cleanNumeric(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == NilSentinel {
		return "", false
	}

	// Negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer(
		"$", "",
		"€", "", // Euro
		"£", "", // Pound
		"₹", "", // Rupee
		",", "",
		" ", "",
	).Replace(s)

	if isNegative {
		s = "-" + s
	}
	return s, numericRegex.MatchString(s)
}

// NormalizeDate parses a raw value as a date: a time.Time is kept, a number
// is a serial day count, a D/M/Y string is read day first, and other strings
// go through a list of common layouts.
func NormalizeDate(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val, true
	case float64:
		return SerialToTime(val)
	case int:
		return SerialToTime(float64(val))
	case int64:
		return SerialToTime(float64(val))
	case decimal.Decimal:
		return SerialToTime(val.InexactFloat64())
	case string:
		return parseDateString(val)
	default:
		return time.Time{}, false
	}
}

// SerialToTime converts a spreadsheet serial day count to a UTC time.
func SerialToTime(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 0 || serial > maxSerial {
		return time.Time{}, false
	}
	days := math.Floor(serial)
	ms := math.Round((serial - days) * msPerDay)
	t := serialEpoch.AddDate(0, 0, int(days)).Add(time.Duration(ms) * time.Millisecond)
	return t, true
}

// TimeToSerial is the inverse of SerialToTime at millisecond precision.
func TimeToSerial(t time.Time) float64 {
	ms := t.UTC().Sub(serialEpoch).Milliseconds()
	return float64(ms) / msPerDay
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == NilSentinel {
		return time.Time{}, false
	}

	if m := dayMonthYear.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if t.Day() == day && int(t.Month()) == month {
			return t, true
		}
		return time.Time{}, false
	}

	// Legacy .xls cells hand serials over as text.
	if numericRegex.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f <= maxSerial {
			return SerialToTime(f)
		}
	}

	for _, layout := range genericDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	if strings.TrimSpace(s) == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgInt8 converts an integer field value to pgtype.Int8.
func ToPgInt8(v any) pgtype.Int8 {
	return pgtype.Int8{Int64: NormalizeInt(v), Valid: true}
}

// ToPgNumeric converts a decimal field value to pgtype.Numeric.
func ToPgNumeric(v any) pgtype.Numeric {
	d := NormalizeNumber(v)
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// FromPgNumeric converts a pgtype.Numeric back to a decimal. NULL and NaN are zero.
func FromPgNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

// ToPgDate converts a date field value to pgtype.Date. nil is NULL.
func ToPgDate(v any) pgtype.Date {
	t, ok := NormalizeDate(v)
	if !ok {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t.UTC(), Valid: true}
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// PgUUIDToString converts a pgtype.UUID to its string representation.
// Returns empty string if the UUID is invalid.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// ToPgValue converts a normalized value of spec to its pgtype parameter.
func ToPgValue(v any, spec FieldSpec) any {
	switch spec.Type {
	case FieldInt:
		return ToPgInt8(v)
	case FieldDecimal:
		return ToPgNumeric(v)
	case FieldDate:
		return ToPgDate(v)
	default:
		return ToPgText(NormalizeText(v))
	}
}
