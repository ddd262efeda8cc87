package rules

import (
	"fmt"
	"time"
)

// UnknownRuleError is returned when a name is not part of the vocabulary
// for its kind, or has no registered implementation.
type UnknownRuleError struct {
	Kind Kind
	Name string
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown %s rule %q", e.Kind, e.Name)
}

// RegistrationError is a startup-time registry misconfiguration.
type RegistrationError struct {
	Kind   Kind
	Name   string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("rule registration %s:%s: %s", e.Kind, e.Name, e.Reason)
}

// typeMismatch builds the reason used when a rule receives a value of the wrong type.
func typeMismatch(rule string, want string, got any) error {
	return fmt.Errorf("%s expects %s, got %s", rule, want, TypeName(got))
}

// TypeName returns the vocabulary name of a value's dynamic type.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case int64:
		return "int"
	case float64:
		return "double"
	case bool:
		return "boolean"
	case []string:
		return "array"
	case time.Time:
		return "date"
	default:
		return fmt.Sprintf("%T", v)
	}
}
