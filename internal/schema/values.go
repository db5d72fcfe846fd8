package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// VALUE PARSERS
// =============================================================================

// nullMarkers are cell values that mean "not reported".
var nullMarkers = map[string]bool{
	"":     true,
	"-":    true,
	"nan":  true,
	"null": true,
	"none": true,
	"n/a":  true,
	"#n/a": true,
}

// parseNumber parses a numeric cell. Currency symbols, thousands separators
// and accounting-style parentheses are accepted. A blank cell returns nil.
func parseNumber(value string) (*float64, error) {
	v := strings.TrimSpace(value)
	if nullMarkers[strings.ToLower(v)] {
		return nil, nil
	}

	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	}
	v = strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("value %q is not a valid number", value)
	}
	if negative {
		f = -f
	}
	return &f, nil
}

// parseInt parses an integer-valued cell such as a fiscal year. "2023.0" is
// accepted.
func parseInt(value string) (int, error) {
	f, err := parseNumber(value)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, fmt.Errorf("value is empty")
	}
	if *f != float64(int64(*f)) {
		return 0, fmt.Errorf("value %q is not a whole number", value)
	}
	return int(*f), nil
}

// dateLayouts are the date formats seen in inventory exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"01-02-06",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// parseDate parses a date cell. Excel serial dates (e.g. "44928") are
// converted with the 1900 date system. A blank cell returns the zero time.
func parseDate(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if nullMarkers[strings.ToLower(v)] {
		return time.Time{}, nil
	}

	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		return excelize.ExcelDateToTime(serial, false)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("value %q is not a valid date", value)
}
