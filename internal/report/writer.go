// Package report writes the outcome of a run: the cleaned rows as CSV, the
// error records as JSON lines or CSV, and a summary.
package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/rules"
)

// Sink names used in SinkWriteError.
const (
	SinkCleaned = "cleaned"
	SinkErrors  = "errors"
)

// ErrorFormat selects the error sink encoding.
type ErrorFormat string

const (
	FormatJSONL ErrorFormat = "jsonl"
	FormatCSV   ErrorFormat = "csv"
)

// ParseErrorFormat parses "jsonl" (default) or "csv".
func ParseErrorFormat(s string) (ErrorFormat, error) {
	switch ErrorFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSONL:
		return FormatJSONL, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return FormatJSONL, fmt.Errorf("unknown error format %q (want jsonl or csv)", s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f ErrorFormat) Extension() string {
	if f == FormatCSV {
		return "csv"
	}
	return "jsonl"
}

// Options control the sinks.
type Options struct {
	ErrorFormat ErrorFormat
	// ArraySeparator joins array values in the cleaned CSV; empty means "|".
	ArraySeparator string
}

// WriteSummary counts what a run produced.
type WriteSummary struct {
	File             string         `json:"file"`
	RowsIn           int            `json:"rows_in"`
	RowsCleaned      int            `json:"rows_cleaned"`
	RowsWithErrors   int            `json:"rows_with_errors"`
	ErrorCountByRule map[string]int `json:"error_count_by_rule"`
}

var errorColumns = []string{"row_index", "line", "column_key", "rule_name", "rule_kind", "raw_value", "reason"}

// Summarize computes the summary of result without writing anything.
func Summarize(result *core.RunResult) WriteSummary {
	sum := WriteSummary{
		File:             result.File,
		RowsIn:           result.SourceRowCount,
		RowsCleaned:      len(result.CleanedRows),
		ErrorCountByRule: make(map[string]int),
	}
	rows := make(map[int]bool)
	for _, e := range result.Errors {
		rows[e.RowIndex] = true
		sum.ErrorCountByRule[e.RuleName]++
	}
	sum.RowsWithErrors = len(rows)
	return sum
}

// Write emits result's cleaned rows to cleaned and its error records to errs.
// Either writer may be nil to skip that sink. Incomplete runs are refused.
func Write(result *core.RunResult, cleaned, errs io.Writer, opts Options) (WriteSummary, error) {
	if result.Incomplete {
		return WriteSummary{}, ErrIncompleteRun
	}

	if cleaned != nil {
		if err := WriteCleaned(cleaned, result, opts); err != nil {
			return WriteSummary{}, err
		}
	}
	if errs != nil {
		if err := WriteErrors(errs, result.Errors, opts.ErrorFormat); err != nil {
			return WriteSummary{}, err
		}
	}
	return Summarize(result), nil
}

// OutputColumns returns the cleaned CSV header for result.
func OutputColumns(result *core.RunResult) []string {
	if len(result.ColumnOrder) > 0 {
		return result.ColumnOrder
	}
	return result.Header
}

// WriteCleaned writes the cleaned rows as CSV with a header row. Columns a
// lenient row dropped are written empty.
func WriteCleaned(w io.Writer, result *core.RunResult, opts Options) error {
	sep := opts.ArraySeparator
	if sep == "" {
		sep = "|"
	}

	cols := OutputColumns(result)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return &SinkWriteError{Sink: SinkCleaned, Err: err}
	}

	record := make([]string, len(cols))
	for _, row := range result.CleanedRows {
		for i, col := range cols {
			record[i] = FormatCell(row.Values[col], sep)
		}
		if err := cw.Write(record); err != nil {
			return &SinkWriteError{Sink: SinkCleaned, Err: err}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return &SinkWriteError{Sink: SinkCleaned, Err: err}
	}
	return nil
}

// FormatCell renders a typed value for the cleaned CSV.
func FormatCell(v any, arraySep string) string {
	if arr, ok := v.([]string); ok {
		return strings.Join(arr, arraySep)
	}
	return rules.FormatValue(v)
}

// WriteErrors writes records ordered by row index, keeping emission order
// within a row.
func WriteErrors(w io.Writer, records []core.ErrorRecord, format ErrorFormat) error {
	sorted := append([]core.ErrorRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RowIndex < sorted[j].RowIndex
	})

	if format == FormatCSV {
		return writeErrorsCSV(w, sorted)
	}
	return writeErrorsJSONL(w, sorted)
}

func writeErrorsJSONL(w io.Writer, records []core.ErrorRecord) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return &SinkWriteError{Sink: SinkErrors, Err: err}
		}
	}
	if err := bw.Flush(); err != nil {
		return &SinkWriteError{Sink: SinkErrors, Err: err}
	}
	return nil
}

func writeErrorsCSV(w io.Writer, records []core.ErrorRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(errorColumns); err != nil {
		return &SinkWriteError{Sink: SinkErrors, Err: err}
	}
	for _, e := range records {
		err := cw.Write([]string{
			strconv.Itoa(e.RowIndex),
			strconv.Itoa(e.Line),
			e.ColumnKey,
			e.RuleName,
			e.RuleKind,
			e.RawValue,
			e.Reason,
		})
		if err != nil {
			return &SinkWriteError{Sink: SinkErrors, Err: err}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return &SinkWriteError{Sink: SinkErrors, Err: err}
	}
	return nil
}
