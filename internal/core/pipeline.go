package core

// pipeline.go runs the per-column rule chains for one row.
//
// Processing is split in two so rows can be evaluated in parallel:
//
//   - Evaluate is pure: it runs standardisation and every validation rule
//     that does not consult column history, and leaves history rules
//     (unique) as pending checks in their chain position.
//   - Finalize runs the pending checks against the file's SeenSets and
//     applies the run mode. Callers must finalize rows in row order.

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/csvclean/internal/ingest"
	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

// Mode selects what happens to a row with at least one error.
type Mode int

const (
	// ModeStrict drops the whole row.
	ModeStrict Mode = iota
	// ModeLenient keeps the row with only its passing columns.
	ModeLenient
)

func (m Mode) String() string {
	if m == ModeLenient {
		return "lenient"
	}
	return "strict"
}

// ParseMode parses "strict" or "lenient".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return ModeStrict, nil
	case "lenient":
		return ModeLenient, nil
	default:
		return ModeStrict, fmt.Errorf("unknown run mode %q (want strict or lenient)", s)
	}
}

// FailurePolicy selects what the validation chain sees after a
// standardisation rule fails.
type FailurePolicy int

const (
	// ValidateRaw runs the validation chain against the raw text.
	ValidateRaw FailurePolicy = iota
	// SkipValidation skips the column's validation chain.
	SkipValidation
)

func (p FailurePolicy) String() string {
	if p == SkipValidation {
		return "skip_validation"
	}
	return "validate_raw"
}

// ParseFailurePolicy parses "validate_raw" or "skip_validation".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "validate_raw":
		return ValidateRaw, nil
	case "skip_validation":
		return SkipValidation, nil
	default:
		return ValidateRaw, fmt.Errorf("unknown failure policy %q (want validate_raw or skip_validation)", s)
	}
}

// RuleKindRow is the rule_kind of a malformed_row record.
const RuleKindRow = "row"

// ErrorRecord is one failed rule on one cell, or one malformed row.
type ErrorRecord struct {
	RowIndex  int    `json:"row_index"`
	Line      int    `json:"line"`
	ColumnKey string `json:"column_key"`
	RuleName  string `json:"rule_name"`
	RuleKind  string `json:"rule_kind"`
	RawValue  string `json:"raw_value"`
	Reason    string `json:"reason"`
}

// CleanedRow holds the typed values of one accepted row.
type CleanedRow struct {
	Index  int
	Values map[string]any
}

// SeenSets holds, per column, the canonical keys observed in one file.
type SeenSets struct {
	mu   sync.Mutex
	cols map[string]map[string]struct{}
}

// NewSeenSets returns empty seen-sets for one file.
func NewSeenSets() *SeenSets {
	return &SeenSets{cols: make(map[string]map[string]struct{})}
}

// Column returns the history of one column.
func (s *SeenSets) Column(key string) rules.History {
	return columnHistory{sets: s, column: key}
}

// Len returns the number of distinct values observed in a column.
func (s *SeenSets) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cols[key])
}

type columnHistory struct {
	sets   *SeenSets
	column string
}

func (h columnHistory) Observe(key string) bool {
	h.sets.mu.Lock()
	defer h.sets.mu.Unlock()

	set, ok := h.sets.cols[h.column]
	if !ok {
		set = make(map[string]struct{})
		h.sets.cols[h.column] = set
	}
	if _, seen := set[key]; seen {
		return true
	}
	set[key] = struct{}{}
	return false
}

type stdStep struct {
	name rules.StandardisationRuleName
	fn   rules.StandardiseFunc
}

type valStep struct {
	name     rules.ValidationRuleName
	fn       rules.ValidateFunc
	deferred bool
}

type columnPlan struct {
	key string
	std []stdStep
	val []valStep
}

// Pipeline applies one file's configuration to its rows. Rule
// implementations are resolved once, when the pipeline is built.
type Pipeline struct {
	mode    Mode
	policy  FailurePolicy
	header  []string
	plans   []columnPlan
	planned map[string]bool
	missing []string
	delimit string
}

// NewPipeline resolves cfg's rule chains against reg for a file whose
// canonical header is header.
func NewPipeline(reg *rules.Registry, cfg schema.CsvConfig, header []string, mode Mode, policy FailurePolicy) (*Pipeline, error) {
	p := &Pipeline{
		mode:    mode,
		policy:  policy,
		header:  header,
		planned: make(map[string]bool),
		delimit: string(cfg.Comma()),
	}

	configured := make(map[string]bool)
	for _, col := range cfg.Columns() {
		configured[col] = true
	}

	// Header order first, then configured columns the header lacks.
	var order []string
	inHeader := make(map[string]bool, len(header))
	for _, key := range header {
		inHeader[key] = true
		if configured[key] {
			order = append(order, key)
		}
	}
	for _, col := range cfg.Columns() {
		if !inHeader[col] {
			order = append(order, col)
			p.missing = append(p.missing, col)
		}
	}

	for _, key := range order {
		plan := columnPlan{key: key}
		for _, name := range cfg.StandardisationRules[key] {
			fn, err := reg.Standardiser(name)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", key, err)
			}
			plan.std = append(plan.std, stdStep{name: name, fn: fn})
		}
		for _, name := range cfg.ValidationRules[key] {
			fn, needsHistory, err := reg.Validator(name)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", key, err)
			}
			plan.val = append(plan.val, valStep{name: name, fn: fn, deferred: needsHistory})
		}
		p.plans = append(p.plans, plan)
		p.planned[key] = true
	}

	return p, nil
}

// MissingColumns lists configured columns absent from the header, sorted.
// They are processed as empty fields.
func (p *Pipeline) MissingColumns() []string {
	out := append([]string(nil), p.missing...)
	sort.Strings(out)
	return out
}

// Columns returns the output columns: the header followed by missing
// configured columns.
func (p *Pipeline) Columns() []string {
	out := append([]string(nil), p.header...)
	return append(out, p.missing...)
}

// slot is one position in a row's ordered diagnostics: either a settled
// error or a history check still to run.
type slot struct {
	err     *ErrorRecord
	pending *pendingCheck
}

type pendingCheck struct {
	column string
	step   valStep
	value  any
	raw    string
}

// RowOutcome is the result of Evaluate, consumed by Finalize.
type RowOutcome struct {
	Index     int
	Line      int
	Malformed bool

	values map[string]any
	failed map[string]bool
	slots  []slot
}

// Evaluate runs every rule that does not need column history.
func (p *Pipeline) Evaluate(raw ingest.RawRow) RowOutcome {
	out := RowOutcome{Index: raw.Index, Line: raw.Line, Malformed: raw.Malformed}

	if raw.Malformed {
		out.slots = []slot{{err: &ErrorRecord{
			RowIndex: raw.Index,
			Line:     raw.Line,
			RuleName: rules.MalformedRow,
			RuleKind: RuleKindRow,
			RawValue: p.joinFields(raw),
			Reason:   fmt.Sprintf("line has %d fields, header has %d", raw.FieldCount, len(p.header)),
		}}}
		return out
	}

	out.values = make(map[string]any, len(p.header)+len(p.missing))
	for _, key := range p.header {
		if !p.planned[key] {
			out.values[key] = raw.Fields[key]
		}
	}

	for _, plan := range p.plans {
		p.evaluateColumn(&out, plan, raw)
	}
	return out
}

func (p *Pipeline) evaluateColumn(out *RowOutcome, plan columnPlan, raw ingest.RawRow) {
	text := raw.Fields[plan.key]
	record := func(name string, kind rules.Kind, reason string) {
		out.slots = append(out.slots, slot{err: &ErrorRecord{
			RowIndex:  raw.Index,
			Line:      raw.Line,
			ColumnKey: plan.key,
			RuleName:  name,
			RuleKind:  kind.String(),
			RawValue:  text,
			Reason:    reason,
		}})
		if out.failed == nil {
			out.failed = make(map[string]bool)
		}
		out.failed[plan.key] = true
	}

	var value any = text
	for _, step := range plan.std {
		next, err := step.fn(value)
		if err != nil {
			reason := err.Error()
			if s, isText := value.(string); !isText || s != text {
				reason = fmt.Sprintf("%s (raw value %q)", reason, text)
			}
			record(string(step.name), rules.KindStandardisation, reason)
			value = text
			if p.policy == SkipValidation {
				return
			}
			break
		}
		value = next
	}
	out.values[plan.key] = value

	for _, step := range plan.val {
		if step.deferred {
			out.slots = append(out.slots, slot{pending: &pendingCheck{
				column: plan.key,
				step:   step,
				value:  value,
				raw:    text,
			}})
			continue
		}
		if err := step.fn(value, nil); err != nil {
			record(string(step.name), rules.KindValidation, err.Error())
		}
	}
}

func (p *Pipeline) joinFields(raw ingest.RawRow) string {
	fields := make([]string, 0, raw.FieldCount)
	for i, key := range p.header {
		if i >= raw.FieldCount {
			break
		}
		fields = append(fields, raw.Fields[key])
	}
	return strings.Join(fields, p.delimit)
}

// Finalize runs the pending history checks of out against seen and applies
// the run mode. Rows of one file must be finalized in row order.
func (p *Pipeline) Finalize(out RowOutcome, seen *SeenSets) (*CleanedRow, []ErrorRecord) {
	var errs []ErrorRecord
	for _, s := range out.slots {
		if s.err != nil {
			errs = append(errs, *s.err)
			continue
		}
		pc := s.pending
		if err := pc.step.fn(pc.value, seen.Column(pc.column)); err != nil {
			errs = append(errs, ErrorRecord{
				RowIndex:  out.Index,
				Line:      out.Line,
				ColumnKey: pc.column,
				RuleName:  string(pc.step.name),
				RuleKind:  rules.KindValidation.String(),
				RawValue:  pc.raw,
				Reason:    err.Error(),
			})
			if out.failed == nil {
				out.failed = make(map[string]bool)
			}
			out.failed[pc.column] = true
		}
	}

	if out.Malformed {
		return nil, errs
	}
	if len(errs) > 0 && p.mode == ModeStrict {
		return nil, errs
	}

	values := make(map[string]any, len(out.values))
	for key, v := range out.values {
		if !out.failed[key] {
			values[key] = v
		}
	}
	return &CleanedRow{Index: out.Index, Values: values}, errs
}

// Process evaluates and finalizes one row.
func (p *Pipeline) Process(raw ingest.RawRow, seen *SeenSets) (*CleanedRow, []ErrorRecord) {
	return p.Finalize(p.Evaluate(raw), seen)
}
