// Package schema holds the per-file cleaning configuration: which lines are
// headers, how columns are renamed, and the ordered rule chains per column.
package schema

import (
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/csvclean/internal/rules"
)

// Supported source encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingISO88591    = "iso-8859-1"
	EncodingISO885915   = "iso-8859-15"
)

// CsvConfig describes how one source file is ingested and cleaned.
type CsvConfig struct {
	HeaderRows           []int                                      `json:"header_rows" yaml:"header_rows"`
	SkipRows             []int                                      `json:"skip_rows" yaml:"skip_rows"`
	RenameColumns        map[string]string                          `json:"rename_columns" yaml:"rename_columns"`
	StandardisationRules map[string][]rules.StandardisationRuleName `json:"standardisation_rules,omitempty" yaml:"standardisation_rules,omitempty"`
	ValidationRules      map[string][]rules.ValidationRuleName      `json:"validation_rules" yaml:"validation_rules"`

	// Delimiter is a single character; empty means ','. "tab" is accepted.
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`

	// Encoding of the source bytes; empty means UTF-8.
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty"`

	// SourceColumns lists the raw headers rules may reference without a rename.
	SourceColumns []string `json:"source_columns,omitempty" yaml:"source_columns,omitempty"`

	// ColumnOrder fixes the cleaned output column order.
	ColumnOrder []string `json:"column_order,omitempty" yaml:"column_order,omitempty"`
}

// RulesByCsv maps a source file basename to its configuration.
type RulesByCsv map[string]CsvConfig

// Identity is the pass-through configuration: first line is the header,
// nothing is renamed, no rules run.
func Identity() CsvConfig {
	return CsvConfig{HeaderRows: []int{0}}
}

// Get looks up the configuration for filename by basename.
func Get(rules RulesByCsv, filename string) (CsvConfig, bool) {
	cfg, ok := rules[filepath.Base(filename)]
	return cfg, ok
}

// Files returns the configured file names, sorted.
func (r RulesByCsv) Files() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Headers returns the header line indices in ascending order, defaulting to [0].
func (c CsvConfig) Headers() []int {
	if len(c.HeaderRows) == 0 {
		return []int{0}
	}
	out := append([]int(nil), c.HeaderRows...)
	sort.Ints(out)
	return out
}

// Comma returns the field delimiter.
func (c CsvConfig) Comma() rune {
	switch d := c.Delimiter; {
	case d == "":
		return ','
	case strings.EqualFold(d, "tab") || d == `\t`:
		return '\t'
	default:
		r, _ := utf8.DecodeRuneInString(d)
		return r
	}
}

// Canonical maps an original header to its canonical column key.
func (c CsvConfig) Canonical(header string) string {
	h := strings.TrimSpace(header)
	if renamed, ok := c.RenameColumns[h]; ok {
		return renamed
	}
	return h
}

// Columns returns every column key with at least one rule, sorted.
func (c CsvConfig) Columns() []string {
	set := make(map[string]bool, len(c.ValidationRules)+len(c.StandardisationRules))
	for col := range c.StandardisationRules {
		set[col] = true
	}
	for col := range c.ValidationRules {
		set[col] = true
	}
	out := make([]string, 0, len(set))
	for col := range set {
		out = append(out, col)
	}
	sort.Strings(out)
	return out
}

// HasRules reports whether any column carries a rule.
func (c CsvConfig) HasRules() bool {
	for _, chain := range c.StandardisationRules {
		if len(chain) > 0 {
			return true
		}
	}
	for _, chain := range c.ValidationRules {
		if len(chain) > 0 {
			return true
		}
	}
	return false
}

// producibleKeys returns the canonical keys a file matching this config can
// produce: every rename target plus every declared source column that is not
// renamed away.
func (c CsvConfig) producibleKeys() map[string]bool {
	keys := make(map[string]bool, len(c.RenameColumns)+len(c.SourceColumns))
	for _, to := range c.RenameColumns {
		keys[to] = true
	}
	for _, src := range c.SourceColumns {
		src = strings.TrimSpace(src)
		if _, renamed := c.RenameColumns[src]; !renamed {
			keys[src] = true
		}
	}
	return keys
}

func normalizedEncoding(enc string) string {
	e := strings.ToLower(strings.TrimSpace(enc))
	switch e {
	case "", "utf8", "utf-8":
		return EncodingUTF8
	case "cp1252", "windows1252", "windows-1252":
		return EncodingWindows1252
	case "latin1", "latin-1", "iso8859-1", "iso-8859-1":
		return EncodingISO88591
	case "latin9", "iso8859-15", "iso-8859-15":
		return EncodingISO885915
	default:
		return e
	}
}

// NormalizedEncoding returns the canonical encoding name.
func (c CsvConfig) NormalizedEncoding() string {
	return normalizedEncoding(c.Encoding)
}
