package core

// convert.go reads individual cells as numbers, booleans, timestamps and text.
//
// Spreadsheet cells arrive with whatever representation the loader found:
//   - Numbers stored as text, possibly padded with whitespace
//   - Dates in US, EU, ISO or textual-month layouts, sometimes with 2-digit years
//   - Booleans written as yes/no, true/false, t/f, 1/0
//
// Every helper here is total: failures are reported through the ok result and
// never as errors.

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Timestamp layouts split by year format for proper 2-digit year handling.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02", "2006.01.02",
		"1/2/2006 15:04:05", "1/2/2006 15:04",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006", "2 January 2006",
		"20060102",
	}
)

// number is a parsed numeric cell. Integers are kept exact when they fit in
// int64; everything else is carried as a float.
type number struct {
	i     int64
	f     float64
	exact bool
}

// parseNumber reads v as a number. Booleans count as 1 and 0; null, time and
// non-numeric text fail.
func parseNumber(v Value) (number, bool) {
	switch v.Kind {
	case KindInt:
		return number{i: v.Int, exact: true}, true
	case KindFloat:
		if math.IsNaN(v.Float) {
			return number{}, false
		}
		return number{f: v.Float}, true
	case KindBool:
		if v.Bool {
			return number{i: 1, exact: true}, true
		}
		return number{i: 0, exact: true}, true
	case KindText:
		return parseNumericText(v.Text)
	default:
		return number{}, false
	}
}

func parseNumericText(s string) (number, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return number{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return number{i: i, exact: true}, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !isRangeErr(err) {
		return number{}, false
	}
	if math.IsNaN(f) {
		return number{}, false
	}
	// ParseFloat returns ±Inf with ErrRange for overflowing literals.
	return number{f: f}, true
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// float returns the number as float64.
func (n number) float() float64 {
	if n.exact {
		return float64(n.i)
	}
	return n.f
}

// clamp fits n into [lo, hi]. It reports whether the original value was
// strictly outside the bound.
func (n number) clamp(lo, hi int64) (int64, bool) {
	if n.exact {
		switch {
		case n.i < lo:
			return lo, true
		case n.i > hi:
			return hi, true
		}
		return n.i, false
	}

	f := n.f
	switch {
	case f < float64(lo):
		return lo, true
	case above(f, hi):
		return hi, true
	}
	// Truncates toward zero.
	return int64(f), false
}

// above reports f > hi. float64(math.MaxInt64) rounds up to 2^63, so at that
// bound equality already means overflow.
func above(f float64, hi int64) bool {
	if hi == math.MaxInt64 {
		return f >= 0x1p63
	}
	return f > float64(hi)
}

// parseTimestamp reads v as a calendar date/time.
// Supports multiple layouts and handles 2-digit years with pivot.
func parseTimestamp(v Value) (time.Time, bool) {
	switch v.Kind {
	case KindTime:
		return v.Time, true
	case KindText:
		return parseTimestampText(v.Text)
	default:
		return time.Time{}, false
	}
}

func parseTimestampText(s string) (time.Time, bool) {
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

	// Try 2-digit year layouts with pivot year adjustment
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

// truthy reads v as a strict boolean using each representation's own rules:
// null is false, numbers are true when non-zero, times are true when set.
// Text recognizes true/false, yes/no, t/f, y/n and 1/0 (case-insensitive);
// any other non-empty text is true.
func truthy(v Value) bool {
	switch v.Kind {
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindBool:
		return v.Bool
	case KindTime:
		return !v.Time.IsZero()
	case KindText:
		switch strings.ToLower(strings.TrimSpace(v.Text)) {
		case "true", "t", "yes", "y", "1":
			return true
		case "false", "f", "no", "n", "0", "":
			return false
		}
		return true
	default:
		return false
	}
}

// formatFloat writes the shortest round-trip form of f, positional for
// decimal exponents in [-4, 16) and scientific ("1e+300", "1e-05") outside.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'e', -1, 64)
	i := strings.IndexByte(s, 'e')
	if i < 0 {
		return s // Inf
	}
	if exp, err := strconv.Atoi(s[i+1:]); err == nil && exp >= -4 && exp < 16 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return s
}

// TimestampLayout is the textual form of timestamps in exports and text coercion.
const TimestampLayout = "2006-01-02 15:04:05.999999"

// FormatValue returns the textual representation of v. Null is the empty string.
func FormatValue(v Value) string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		if math.IsNaN(v.Float) {
			return ""
		}
		return formatFloat(v.Float)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindTime:
		return v.Time.Format(TimestampLayout)
	case KindText:
		return v.Text
	default:
		return ""
	}
}
