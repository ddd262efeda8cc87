package rules

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type validators struct {
	now func() time.Time
}

func (c validators) table() map[ValidationRuleName]ValidateFunc {
	return map[ValidationRuleName]ValidateFunc{
		ValNotNull:        notNull,
		ValNotNegative:    numberCheck(ValNotNegative, func(f float64) bool { return f >= 0 }, "is negative"),
		ValPositiveNumber: numberCheck(ValPositiveNumber, func(f float64) bool { return f > 0 }, "is not positive"),
		ValToLowerCase:    caseCheck(ValToLowerCase, strings.ToLower, "lower"),
		ValToUpperCase:    caseCheck(ValToUpperCase, strings.ToUpper, "upper"),
		ValBeforeNow:      c.dateCheck(ValBeforeNow, func(t, now time.Time) bool { return t.Before(now) }, "is not before now"),
		ValAfterNow:       c.dateCheck(ValAfterNow, func(t, now time.Time) bool { return t.After(now) }, "is not after now"),
		ValInt:            isInt,
		ValString:         isString,
		ValFloat:          isFloat,
		ValDouble:         isDouble,
		ValBoolean:        isBoolean,
		ValArray:          isArray,
		ValDate:           c.isDate,
		ValUnique:         unique,
	}
}

var errNull = errors.New("value is empty")

func notNull(v any, _ History) error {
	switch x := v.(type) {
	case nil:
		return errNull
	case string:
		if strings.TrimSpace(x) == "" {
			return errNull
		}
	case []string:
		if len(x) == 0 {
			return errors.New("array is empty")
		}
	}
	return nil
}

func numberCheck(name ValidationRuleName, pass func(float64) bool, failure string) ValidateFunc {
	return func(v any, _ History) error {
		f, ok := AsNumber(v)
		if !ok {
			if _, isText := v.(string); isText {
				return fmt.Errorf("%q is not a number", FormatValue(v))
			}
			return typeMismatch(string(name), "number", v)
		}
		if !pass(f) {
			return fmt.Errorf("%s %s", FormatValue(v), failure)
		}
		return nil
	}
}

func caseCheck(name ValidationRuleName, fold func(string) string, want string) ValidateFunc {
	return func(v any, _ History) error {
		s, ok := v.(string)
		if !ok {
			return typeMismatch(string(name), "string", v)
		}
		if fold(s) != s {
			return fmt.Errorf("%q is not %s case", s, want)
		}
		return nil
	}
}

func (c validators) asDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return ParseDateText(x, c.now())
	default:
		return time.Time{}, false
	}
}

func (c validators) dateCheck(name ValidationRuleName, pass func(t, now time.Time) bool, failure string) ValidateFunc {
	return func(v any, _ History) error {
		t, ok := c.asDate(v)
		if !ok {
			if _, isText := v.(string); isText {
				return fmt.Errorf("%q is not a date", FormatValue(v))
			}
			return typeMismatch(string(name), "date", v)
		}
		if !pass(t, c.now()) {
			return fmt.Errorf("%s %s", FormatValue(t), failure)
		}
		return nil
	}
}

func (c validators) isDate(v any, _ History) error {
	if _, ok := c.asDate(v); !ok {
		return fmt.Errorf("%q is not a date", FormatValue(v))
	}
	return nil
}

func isInt(v any, _ History) error {
	switch x := v.(type) {
	case int64:
		return nil
	case string:
		if _, ok := ParseIntText(x); ok {
			return nil
		}
	}
	return fmt.Errorf("%q is not an int", FormatValue(v))
}

func isString(v any, _ History) error {
	if _, ok := v.(string); !ok {
		return fmt.Errorf("expected string, got %s", TypeName(v))
	}
	return nil
}

func isFloat(v any, _ History) error {
	f, ok := AsNumber(v)
	if !ok {
		return fmt.Errorf("%q is not a float", FormatValue(v))
	}
	if math.Abs(f) > math.MaxFloat32 {
		return fmt.Errorf("%s is out of float range", FormatValue(v))
	}
	return nil
}

func isDouble(v any, _ History) error {
	if _, ok := AsNumber(v); !ok {
		return fmt.Errorf("%q is not a double", FormatValue(v))
	}
	return nil
}

func isBoolean(v any, _ History) error {
	switch x := v.(type) {
	case bool:
		return nil
	case string:
		if _, ok := ParseBoolText(x); ok {
			return nil
		}
	}
	return fmt.Errorf("%q is not a boolean", FormatValue(v))
}

func isArray(v any, _ History) error {
	if _, ok := v.([]string); !ok {
		return fmt.Errorf("expected array, got %s", TypeName(v))
	}
	return nil
}

// unique fails on the second and later occurrence of a value. Every call
// records the value, so the first occurrence always passes.
func unique(v any, h History) error {
	if h == nil {
		return nil
	}
	if h.Observe(Key(v)) {
		return fmt.Errorf("duplicate value %q", FormatValue(v))
	}
	return nil
}
