package schema

import (
	"fmt"
	"strings"
)

// ParseError reports a rules document that is not structurally valid.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse rules %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReferenceError reports a configuration entry that names a column or rule
// that cannot exist. Column and Rule are empty when not applicable.
type ReferenceError struct {
	File   string
	Column string
	Rule   string
	Reason string
}

func (e *ReferenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rules for %q", e.File)
	if e.Column != "" {
		fmt.Fprintf(&b, ", column %q", e.Column)
	}
	if e.Rule != "" {
		fmt.Fprintf(&b, ", rule %q", e.Rule)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}
