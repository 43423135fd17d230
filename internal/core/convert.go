package core

// convert.go turns raw CSV cells into values the store can persist.
//
// These functions handle the messy reality of spreadsheet exports:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Excel formula prefixes (="value")
//
// Numeric columns are lenient: anything that does not parse becomes zero
// instead of failing the row. Dates that do not parse are stored as NULL.

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
		time.RFC3339,
	}
)

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// ParseDecimal parses a numeric cell.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// LenientDecimal parses s, defaulting to zero when it is not a number.
func LenientDecimal(s string) decimal.Decimal {
	d, _ := ParseDecimal(s)
	return d
}

// ParseDate parses a date cell in any of the supported layouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// BuildRecord maps a validated row onto the kind's database columns.
// The code column is left unset; the caller fills it after allocation.
func BuildRecord(kind ImportKind, row ImportRow) Record {
	values := make(map[string]any, len(kind.Columns))

	for _, spec := range kind.Columns {
		raw := row.Get(spec.Name)

		switch spec.Type {
		case ColumnCode:
			continue
		case ColumnNumeric:
			values[spec.DBColumn] = LenientDecimal(raw)
		case ColumnDate:
			if t, ok := ParseDate(raw); ok {
				values[spec.DBColumn] = t
			} else {
				values[spec.DBColumn] = nil
			}
		default:
			if spec.Normalizer != nil && raw != "" {
				raw = spec.Normalizer(raw)
			}
			if raw == "" {
				values[spec.DBColumn] = nil
			} else {
				values[spec.DBColumn] = raw
			}
		}
	}

	return Record{Kind: kind.Entity.Kind, Values: values}
}
