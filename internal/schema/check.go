package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/csvclean/internal/rules"
)

// Check validates every config in rules against the rule vocabularies and
// the columns each config can produce. It returns all problems joined.
func Check(rs RulesByCsv) error {
	var errs []error
	for _, file := range rs.Files() {
		errs = append(errs, checkConfig(file, rs[file])...)
	}
	return errors.Join(errs...)
}

func checkConfig(file string, cfg CsvConfig) []error {
	var errs []error
	refErr := func(column, rule, reason string) {
		errs = append(errs, &ReferenceError{File: file, Column: column, Rule: rule, Reason: reason})
	}

	// Get matches on the file basename, so any other key can never apply.
	if file == "" || strings.ContainsAny(file, `/\`) || file == "." || file == ".." {
		refErr("", "", fmt.Sprintf("config key %q is not a file basename", file))
	}

	for _, idx := range cfg.HeaderRows {
		if idx < 0 {
			refErr("", "", fmt.Sprintf("negative header row %d", idx))
		}
	}
	for _, idx := range cfg.SkipRows {
		if idx < 0 {
			refErr("", "", fmt.Sprintf("negative skip row %d", idx))
		}
	}

	if d := cfg.Delimiter; d != "" && !strings.EqualFold(d, "tab") && d != `\t` {
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
			refErr("", "", fmt.Sprintf("invalid delimiter %q", d))
		}
	}

	switch cfg.NormalizedEncoding() {
	case EncodingUTF8, EncodingWindows1252, EncodingISO88591, EncodingISO885915:
	default:
		refErr("", "", fmt.Sprintf("unsupported encoding %q", cfg.Encoding))
	}

	targets := make(map[string]string, len(cfg.RenameColumns))
	for _, from := range sortedKeys(cfg.RenameColumns) {
		to := cfg.RenameColumns[from]
		if strings.TrimSpace(to) == "" {
			refErr(from, "", "rename target is empty")
			continue
		}
		if prev, dup := targets[to]; dup {
			refErr(to, "", fmt.Sprintf("both %q and %q are renamed to it", prev, from))
			continue
		}
		targets[to] = from
	}

	keys := cfg.producibleKeys()
	for _, col := range cfg.Columns() {
		if !keys[col] {
			refErr(col, "", "column is not produced by rename_columns or source_columns")
		}
	}
	for _, col := range sortedKeys(cfg.StandardisationRules) {
		for _, name := range cfg.StandardisationRules[col] {
			if !rules.IsStandardisation(string(name)) {
				refErr(col, string(name), "unknown standardisation rule")
			}
		}
	}
	for _, col := range sortedKeys(cfg.ValidationRules) {
		for _, name := range cfg.ValidationRules[col] {
			if !rules.IsValidation(string(name)) {
				refErr(col, string(name), "unknown validation rule")
			}
		}
	}

	if len(cfg.SourceColumns) > 0 {
		for _, col := range cfg.ColumnOrder {
			if !keys[col] {
				refErr(col, "", "column_order names a column the file does not produce")
			}
		}
	}

	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
