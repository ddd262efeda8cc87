package rules

// convert.go holds the text coercions shared by standardisation and
// validation rules.
//
// Government exports are messy:
//   - dates come day-first (French style), ISO, or with French month names
//   - numbers carry spaces or NBSP as thousands separators and ',' as decimal mark
//   - booleans are spelled in English or French
//
// Every parser returns ok=false rather than an error; callers build the reason.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a plain number after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years after now are moved back a century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"2/1/06", "02/01/06", "2-1-06", "2.1.06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02",
		"2006/01/02", "2006.01.02",
		"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006", "2.1.2006", "02.01.2006",
		"02/01/2006 15:04", "02/01/2006 15:04:05",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		"20060102",
	}
)

// frenchMonths maps French month names (with and without accents) to English.
var frenchMonths = strings.NewReplacer(
	"janvier", "January", "février", "February", "fevrier", "February",
	"mars", "March", "avril", "April", "mai", "May", "juin", "June",
	"juillet", "July", "août", "August", "aout", "August",
	"septembre", "September", "octobre", "October", "novembre", "November",
	"décembre", "December", "decembre", "December",
)

// ParseDateText parses s with the supported layouts. now anchors the
// two-digit year pivot.
func ParseDateText(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = frenchMonths.Replace(strings.ToLower(s))
	s = restoreLayoutCase(s)

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := now.Year() + TwoDigitYearPivot
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

// restoreLayoutCase undoes the lowercasing for tokens time.Parse is
// case-sensitive about: English month names and the RFC3339 'T'/'Z'.
func restoreLayoutCase(s string) string {
	if len(s) >= 11 && s[4] == '-' && s[10] == 't' {
		s = s[:10] + "T" + s[11:]
		if strings.HasSuffix(s, "z") {
			s = s[:len(s)-1] + "Z"
		}
	}
	for _, m := range englishMonths {
		lower := strings.ToLower(m)
		if strings.Contains(s, lower) {
			s = strings.ReplaceAll(s, lower, m)
			break
		}
	}
	return s
}

var englishMonths = []string{
	"January", "February", "March", "April", "May", "June", "July",
	"August", "September", "October", "November", "December",
	"Jan", "Feb", "Mar", "Apr", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// cleanNumberText strips currency symbols, grouping spaces and accounting
// parentheses, and resolves the decimal mark. The result is either a plain
// number accepted by numericRegex or "".
func cleanNumberText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// Accounting negative "(123.45)"
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer(
		"$", "", "\u20ac", "", "\u00a3", "",
		" ", "", "\u00a0", "", "\u202f", "", "'", "",
	).Replace(s)

	s = resolveDecimalMark(s)

	if negative {
		if strings.HasPrefix(s, "-") {
			return ""
		}
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return ""
	}
	return s
}

// resolveDecimalMark rewrites s so that '.' is the decimal mark and no
// grouping separators remain. With both marks present the last one is the
// decimal mark. A lone comma followed by exactly three digits is grouping,
// otherwise it is the decimal mark.
func resolveDecimalMark(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		frac := s[lastComma+1:]
		if len(frac) == 3 && lastComma > 0 && isDigits(frac) {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	default:
		return s
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseNumberText parses s as a float64.
func ParseNumberText(s string) (float64, bool) {
	clean := cleanNumberText(s)
	if clean == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseIntText parses s as an int64. Integral decimals such as "4.0" are accepted.
func ParseIntText(s string) (int64, bool) {
	clean := cleanNumberText(s)
	if clean == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	return floatToInt(f)
}

func floatToInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// ParseBoolText accepts English and French spellings.
func ParseBoolText(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "oui", "o", "vrai", "on":
		return true, true
	case "false", "f", "no", "n", "0", "non", "faux", "off":
		return false, true
	default:
		return false, false
	}
}

// AsNumber coerces a typed or textual value to float64.
func AsNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		return ParseNumberText(x)
	default:
		return 0, false
	}
}

// FormatValue renders a typed value as text. The output is deterministic.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case []string:
		return strings.Join(x, ", ")
	default:
		return ""
	}
}

// Key returns the canonical identity of a value for uniqueness checks.
// Values of different types never collide.
func Key(v any) string {
	switch x := v.(type) {
	case []string:
		return "array:" + strings.Join(x, "\x1f")
	default:
		return TypeName(v) + ":" + FormatValue(v)
	}
}
