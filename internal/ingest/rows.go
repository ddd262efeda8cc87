// Package ingest turns a delimited source into a lazy sequence of raw rows
// keyed by canonical column.
package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/schema"
)

// RawRow is one data line. Fields is keyed by canonical column. A
// malformed row has fewer fields than the header; its Fields hold what was
// present.
type RawRow struct {
	Index      int
	Line       int
	Fields     map[string]string
	Malformed  bool
	FieldCount int
}

// Options tune ingestion.
type Options struct {
	// PassThrough pads short lines with empty fields instead of reporting
	// them as malformed. Used when the file has no config.
	PassThrough bool
	// Size is the source size in bytes, if known, for progress reporting.
	Size int64
}

// Rows is a forward-only iterator over the data rows of one source.
// It is not safe for concurrent use, except for BytesRead and Progress.
type Rows struct {
	name    string
	opts    Options
	closer  io.Closer
	counter *countingReader
	reader  *csv.Reader

	headerLines map[int]bool
	skipLines   map[int]bool
	header      []string

	row   RawRow
	index int
	err   error
	done  bool
}

// Open opens path and positions the iterator after its header line.
func Open(path string, cfg schema.CsvConfig, opts Options) (*Rows, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceError{Path: path, Op: "open", Err: err}
	}
	if opts.Size == 0 {
		if info, err := f.Stat(); err == nil {
			opts.Size = info.Size()
		}
	}

	rows, err := newRows(f, path, cfg, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	rows.closer = f
	return rows, nil
}

// New reads from r. name identifies the source in errors.
func New(r io.Reader, name string, cfg schema.CsvConfig, opts Options) (*Rows, error) {
	return newRows(r, name, cfg, opts)
}

func newRows(r io.Reader, name string, cfg schema.CsvConfig, opts Options) (*Rows, error) {
	decoded, counter, err := wrap(r, cfg.NormalizedEncoding(), opts.Size)
	if err != nil {
		return nil, &SourceError{Path: name, Op: "decode", Err: err}
	}

	cr := csv.NewReader(decoded)
	cr.Comma = cfg.Comma()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows := &Rows{
		name:        name,
		opts:        opts,
		counter:     counter,
		reader:      cr,
		headerLines: indexSet(cfg.Headers()),
		skipLines:   indexSet(cfg.SkipRows),
	}
	if err := rows.readHeader(cfg); err != nil {
		return nil, err
	}
	return rows, nil
}

func indexSet(idx []int) map[int]bool {
	m := make(map[int]bool, len(idx))
	for _, i := range idx {
		m[i] = true
	}
	return m
}

// readHeader consumes lines up to and including the first present header
// line. Lines before it have no header to be zipped with and are dropped.
// A source without a header line yields no rows.
func (r *Rows) readHeader(cfg schema.CsvConfig) error {
	for {
		record, line, err := r.read()
		if err == io.EOF {
			r.done = true
			return nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return &SourceError{Path: r.name, Op: "read", Err: err}
		}
		if !r.headerLines[line] || r.isBlank(record) {
			continue
		}
		r.header = canonicalHeader(record, cfg)
		return nil
	}
}

// canonicalHeader renames each original header and makes keys unique by
// suffixing repeats with their occurrence number ("name", "name_2").
func canonicalHeader(record []string, cfg schema.CsvConfig) []string {
	out := make([]string, len(record))
	counts := make(map[string]int, len(record))
	for i, h := range record {
		key := cfg.Canonical(h)
		counts[key]++
		if n := counts[key]; n > 1 {
			key = key + "_" + strconv.Itoa(n)
		}
		out[i] = key
	}
	return out
}

// read returns the next record and the zero-based physical line it starts on.
func (r *Rows) read() ([]string, int, error) {
	record, err := r.reader.Read()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return record, parseErr.StartLine - 1, err
		}
		return nil, 0, err
	}
	line, _ := r.reader.FieldPos(0)
	return record, line - 1, nil
}

// isBlank reports whether record is a whitespace-only line. In a
// single-column source such a line is a data row holding a blank value.
func (r *Rows) isBlank(record []string) bool {
	if len(record) != 1 || strings.TrimSpace(record[0]) != "" {
		return false
	}
	return len(r.header) != 1
}

// Header returns the canonical column keys in source order. It is nil when
// the source has no header line.
func (r *Rows) Header() []string {
	return r.header
}

// Next advances to the next data row.
func (r *Rows) Next() bool {
	if r.done || r.err != nil {
		return false
	}

	for {
		record, line, err := r.read()
		if err == io.EOF {
			r.done = true
			return false
		}

		var parseErr *csv.ParseError
		malformed := errors.As(err, &parseErr)
		if err != nil && !malformed {
			r.err = &SourceError{Path: r.name, Op: "read", Err: err}
			return false
		}

		if r.skipLines[line] || r.headerLines[line] {
			continue
		}
		if !malformed && r.isBlank(record) {
			continue
		}

		r.row = r.zip(record, line, malformed)
		r.index++
		return true
	}
}

func (r *Rows) zip(record []string, line int, malformed bool) RawRow {
	row := RawRow{
		Index:      r.index,
		Line:       line,
		Fields:     make(map[string]string, len(r.header)),
		FieldCount: len(record),
	}

	if len(record) < len(r.header) {
		if r.opts.PassThrough {
			padded := make([]string, len(r.header))
			copy(padded, record)
			record = padded
		} else {
			malformed = true
		}
	}
	row.Malformed = malformed && !r.opts.PassThrough

	for i, key := range r.header {
		if i < len(record) {
			row.Fields[key] = record[i]
		}
	}
	return row
}

// Row returns the current row. Valid after Next returns true.
func (r *Rows) Row() RawRow {
	return r.row
}

// Err returns the error that stopped iteration, if any.
func (r *Rows) Err() error {
	return r.err
}

// BytesRead returns the number of source bytes consumed so far.
func (r *Rows) BytesRead() int64 {
	return r.counter.Count()
}

// Progress returns the read progress as a percentage, 0 when the size is unknown.
func (r *Rows) Progress() int {
	return r.counter.Progress()
}

// Close releases the underlying file, if Open created it.
func (r *Rows) Close() error {
	r.done = true
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
