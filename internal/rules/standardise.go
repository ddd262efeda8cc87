package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// standardisers holds the collaborators of the standardisation rules that
// are not pure functions of their input.
type standardisers struct {
	now       func() time.Time
	normalize NameNormalizer
}

func (s standardisers) table() map[StandardisationRuleName]StandardiseFunc {
	return map[StandardisationRuleName]StandardiseFunc{
		StdToLowerCase:           textTransform(StdToLowerCase, strings.ToLower),
		StdToUpperCase:           textTransform(StdToUpperCase, strings.ToUpper),
		StdTrimSpaces:            textTransform(StdTrimSpaces, collapseSpaces),
		StdTrimEmoji:             textTransform(StdTrimEmoji, trimEmoji),
		StdParseDate:             s.parseDate,
		StdNormalizeDuration:     normalizeDuration,
		StdExtractGenreIds:       extractGenreIds,
		StdNormalizeTags:         s.normalizeTags,
		StdNormalizeBoolean:      normalizeBoolean,
		StdToArray:               toArray,
		StdToInt:                 toInt,
		StdToFloat:               toFloat,
		StdToDouble:              toDouble,
		StdToString:              toString,
		StdToBoolean:             toBoolean,
		StdConvertToQuantitative: convertToQuantitative,
	}
}

func textTransform(name StandardisationRuleName, fn func(string) string) StandardiseFunc {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, typeMismatch(string(name), "string", v)
		}
		return fn(s), nil
	}
}

func conversionFailed(v any, target string) error {
	return fmt.Errorf("cannot convert %q to %s", FormatValue(v), target)
}

func (s standardisers) parseDate(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		t, ok := ParseDateText(x, s.now())
		if !ok {
			return nil, conversionFailed(x, "date")
		}
		return t, nil
	default:
		return nil, typeMismatch(string(StdParseDate), "string", v)
	}
}

func (s standardisers) normalizeTags(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return s.normalize(x), nil
	case []string:
		out := make([]string, 0, len(x))
		seen := make(map[string]bool, len(x))
		for _, tag := range x {
			n := s.normalize(tag)
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
		return out, nil
	default:
		return nil, typeMismatch(string(StdNormalizeTags), "string or array", v)
	}
}

var (
	isoDurationRe = regexp.MustCompile(`^p(?:(\d+)d)?(?:t(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?)?$`)
	durationUnits = map[string]int64{
		"h": 3600, "hr": 3600, "hrs": 3600, "hour": 3600, "hours": 3600, "heure": 3600, "heures": 3600,
		"m": 60, "mn": 60, "min": 60, "mins": 60, "minute": 60, "minutes": 60,
		"s": 1, "sec": 1, "secs": 1, "second": 1, "seconds": 1, "seconde": 1, "secondes": 1,
	}
)

// normalizeDuration converts a duration to whole seconds. A bare number is
// minutes; a bare number after hours is minutes ("1h30"), after minutes it
// is seconds.
func normalizeDuration(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case string:
		secs, ok := parseDurationText(x)
		if !ok {
			return nil, conversionFailed(x, "duration")
		}
		return secs, nil
	default:
		return nil, typeMismatch(string(StdNormalizeDuration), "string", v)
	}
}

func parseDurationText(raw string) (int64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	if m := isoDurationRe.FindStringSubmatch(s); m != nil && s != "p" && s != "pt" {
		var total int64
		for i, mult := range []int64{86400, 3600, 60, 1} {
			if m[i+1] == "" {
				continue
			}
			n, err := strconv.ParseInt(m[i+1], 10, 64)
			if err != nil {
				return 0, false
			}
			var ok bool
			if total, ok = addScaled(total, n, mult); !ok {
				return 0, false
			}
		}
		return total, true
	}

	if strings.Contains(s, ":") {
		return parseClockDuration(s)
	}

	var (
		total    float64
		lastUnit int64
		parsed   bool
	)
	for s != "" {
		s = strings.TrimLeft(s, " ")
		end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) && r != '.' && r != ',' })
		if end == 0 {
			return 0, false
		}
		if end < 0 {
			end = len(s)
		}
		n, err := strconv.ParseFloat(strings.Replace(s[:end], ",", ".", 1), 64)
		if err != nil {
			return 0, false
		}
		s = strings.TrimLeft(s[end:], " ")

		unitEnd := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
		if unitEnd < 0 {
			unitEnd = len(s)
		}
		unit := s[:unitEnd]
		s = s[unitEnd:]

		var mult int64
		if unit == "" {
			switch lastUnit {
			case 0:
				if parsed {
					return 0, false
				}
				mult = 60
			case 3600:
				mult = 60
			case 60:
				mult = 1
			default:
				return 0, false
			}
		} else {
			var ok bool
			if mult, ok = durationUnits[unit]; !ok {
				return 0, false
			}
		}
		total += n * float64(mult)
		lastUnit = mult
		parsed = true
	}
	if !parsed {
		return 0, false
	}
	total = math.Round(total)
	if math.IsInf(total, 0) || math.IsNaN(total) || total >= math.MaxInt64 {
		return 0, false
	}
	return int64(total), true
}

// addScaled returns total + n*mult, or false when the result would not fit
// in an int64. n and mult are non-negative.
func addScaled(total, n, mult int64) (int64, bool) {
	if n > 0 && n > (math.MaxInt64-total)/mult {
		return 0, false
	}
	return total + n*mult, true
}

// parseClockDuration handles "h:mm" and "h:mm:ss".
func parseClockDuration(s string) (int64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	mults := []int64{3600, 60, 1}
	var total int64
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if !isDigits(p) {
			return 0, false
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, false
		}
		if i > 0 && n >= 60 {
			return 0, false
		}
		var ok bool
		if total, ok = addScaled(total, n, mults[i]); !ok {
			return 0, false
		}
	}
	return total, true
}

var genreIDRe = regexp.MustCompile(`\d+`)

// extractGenreIds pulls integer ids out of list-like text ("[28, 12]", "28|12").
func extractGenreIds(v any) (any, error) {
	var texts []string
	switch x := v.(type) {
	case string:
		texts = []string{x}
	case []string:
		texts = x
	default:
		return nil, typeMismatch(string(StdExtractGenreIds), "string or array", v)
	}

	ids := []string{}
	seen := make(map[string]bool)
	nonEmpty := false
	for _, t := range texts {
		if strings.TrimSpace(strings.Trim(strings.TrimSpace(t), "[]")) != "" {
			nonEmpty = true
		}
		for _, id := range genreIDRe.FindAllString(t, -1) {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if nonEmpty && len(ids) == 0 {
		return nil, fmt.Errorf("no genre ids in %q", FormatValue(v))
	}
	return ids, nil
}

func normalizeBoolean(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x), nil
	case string:
		b, ok := ParseBoolText(x)
		if !ok {
			return nil, conversionFailed(x, "boolean")
		}
		return strconv.FormatBool(b), nil
	default:
		return nil, typeMismatch(string(StdNormalizeBoolean), "string", v)
	}
}

var arraySplitter = regexp.MustCompile(`[,|;]`)

func toArray(v any) (any, error) {
	switch x := v.(type) {
	case []string:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		s = strings.TrimPrefix(s, "[")
		s = strings.TrimSuffix(s, "]")
		out := []string{}
		for _, part := range arraySplitter.Split(s, -1) {
			part = strings.Trim(strings.TrimSpace(part), `'"`)
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, typeMismatch(string(StdToArray), "string or array", v)
	}
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if i, ok := floatToInt(x); ok {
			return i, nil
		}
		return nil, conversionFailed(x, "int")
	case string:
		if i, ok := ParseIntText(x); ok {
			return i, nil
		}
		return nil, conversionFailed(x, "int")
	default:
		return nil, typeMismatch(string(StdToInt), "string or number", v)
	}
}

// toFloat keeps float32 precision: the shortest decimal that round-trips
// through float32 is parsed back into a float64.
func toFloat(v any) (any, error) {
	f, ok := AsNumber(v)
	if !ok {
		if _, isText := v.(string); isText {
			return nil, conversionFailed(v, "float")
		}
		return nil, typeMismatch(string(StdToFloat), "string or number", v)
	}
	if math.Abs(f) > math.MaxFloat32 {
		return nil, fmt.Errorf("%s is out of float range", FormatValue(v))
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'g', -1, 32), 64)
	if err != nil {
		return nil, conversionFailed(v, "float")
	}
	return r, nil
}

func toDouble(v any) (any, error) {
	f, ok := AsNumber(v)
	if !ok {
		if _, isText := v.(string); isText {
			return nil, conversionFailed(v, "double")
		}
		return nil, typeMismatch(string(StdToDouble), "string or number", v)
	}
	return f, nil
}

func toString(v any) (any, error) {
	return FormatValue(v), nil
}

func toBoolean(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		switch x {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return nil, conversionFailed(x, "boolean")
	case string:
		b, ok := ParseBoolText(x)
		if !ok {
			return nil, conversionFailed(x, "boolean")
		}
		return b, nil
	default:
		return nil, typeMismatch(string(StdToBoolean), "string, bool or int", v)
	}
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // pictographs, emoticons, transport, flags
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r >= 0xE0020 && r <= 0xE007F: // tag sequences
		return true
	case r == 0x200D || r == 0x20E3:
		return true
	}
	return false
}

func trimEmoji(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		return r
	}, s))
}

const (
	quantityNum  = `[-+]?\d[\d \x{00a0}\x{202f}]*(?:[.,]\d+)*`
	quantityUnit = `\p{L}[\p{L}.]*(?:\s+\p{L}[\p{L}.]*)*`
)

var (
	percentRe = regexp.MustCompile(`^(` + quantityNum + `)\s*%$`)
	rangeRe   = regexp.MustCompile(`^(` + quantityNum + `)\s*(?:-|–|à|a|au|to)\s*(` + quantityNum + `)\s*(?:` + quantityUnit + `)?$`)
	openRe    = regexp.MustCompile(`^(` + quantityNum + `)\s*(?:` + quantityUnit + `\s*)?(?:\+|et plus|ou plus|and over|or more|and more)$`)
	unitRe    = regexp.MustCompile(`^(` + quantityNum + `)\s*` + quantityUnit + `$`)
)

// convertToQuantitative turns descriptive quantities into numbers:
// "12,5 %" is 0.125, "10 à 14 ans" is 12, "80+" and "80 ans et plus" are
// 80, "4 ans" is 4.
func convertToQuantitative(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		if f, ok := parseQuantity(x); ok {
			return f, nil
		}
		return nil, conversionFailed(x, "quantity")
	default:
		return nil, typeMismatch(string(StdConvertToQuantitative), "string or number", v)
	}
}

func parseQuantity(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	if f, ok := ParseNumberText(s); ok {
		return f, true
	}
	if m := percentRe.FindStringSubmatch(s); m != nil {
		f, ok := ParseNumberText(m[1])
		return f / 100, ok
	}
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		lo, ok1 := ParseNumberText(m[1])
		hi, ok2 := ParseNumberText(m[2])
		if ok1 && ok2 {
			return (lo + hi) / 2, true
		}
	}
	for _, re := range []*regexp.Regexp{openRe, unitRe} {
		if m := re.FindStringSubmatch(s); m != nil {
			if f, ok := ParseNumberText(m[1]); ok {
				return f, true
			}
		}
	}
	return 0, false
}
