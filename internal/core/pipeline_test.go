package core

import (
	"reflect"
	"testing"

	"github.com/JonMunkholm/csvclean/internal/ingest"
	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

var testRegistry = rules.MustDefaultRegistry()

func newTestPipeline(t *testing.T, cfg schema.CsvConfig, header []string, mode Mode, policy FailurePolicy) *Pipeline {
	t.Helper()
	p, err := NewPipeline(testRegistry, cfg, header, mode, policy)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	return p
}

func rawRow(index int, fields map[string]string) ingest.RawRow {
	return ingest.RawRow{Index: index, Line: index + 1, Fields: fields, FieldCount: len(fields)}
}

func ruleNames(errs []ErrorRecord) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.RuleName)
	}
	return out
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeStrict},
		{in: "strict", want: ModeStrict},
		{in: " Lenient ", want: ModeLenient},
		{in: "loose", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFailurePolicy(t *testing.T) {
	if p, err := ParseFailurePolicy("skip_validation"); err != nil || p != SkipValidation {
		t.Errorf("ParseFailurePolicy(skip_validation) = %v, %v", p, err)
	}
	if p, err := ParseFailurePolicy(""); err != nil || p != ValidateRaw {
		t.Errorf("ParseFailurePolicy(\"\") = %v, %v", p, err)
	}
	if _, err := ParseFailurePolicy("ignore"); err == nil {
		t.Error("ParseFailurePolicy(ignore) should fail")
	}
}

func TestPipeline_NotNullOnWhitespace(t *testing.T) {
	cfg := schema.CsvConfig{
		ValidationRules: map[string][]rules.ValidationRuleName{"name": {rules.ValNotNull}},
	}
	p := newTestPipeline(t, cfg, []string{"name"}, ModeStrict, ValidateRaw)

	row, errs := p.Process(rawRow(0, map[string]string{"name": "   "}), NewSeenSets())
	if row != nil {
		t.Errorf("strict row with error should be dropped, got %+v", row)
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %+v", len(errs), errs)
	}
	e := errs[0]
	if e.RuleName != "notNull" || e.RuleKind != "validation" || e.ColumnKey != "name" || e.RawValue != "   " {
		t.Errorf("unexpected record %+v", e)
	}
}

func TestPipeline_UniqueFirstOccurrencePasses(t *testing.T) {
	cfg := schema.CsvConfig{
		ValidationRules: map[string][]rules.ValidationRuleName{"id": {rules.ValUnique}},
	}
	p := newTestPipeline(t, cfg, []string{"id"}, ModeStrict, ValidateRaw)
	seen := NewSeenSets()

	var kept []int
	var failed []int
	for i, v := range []string{"a", "b", "a", "a", "c"} {
		row, errs := p.Process(rawRow(i, map[string]string{"id": v}), seen)
		if row != nil {
			kept = append(kept, row.Index)
		}
		for _, e := range errs {
			failed = append(failed, e.RowIndex)
		}
	}

	if want := []int{0, 1, 4}; !reflect.DeepEqual(kept, want) {
		t.Errorf("kept rows = %v, want %v", kept, want)
	}
	if want := []int{2, 3}; !reflect.DeepEqual(failed, want) {
		t.Errorf("failed rows = %v, want %v", failed, want)
	}
	if got := seen.Len("id"); got != 3 {
		t.Errorf("seen.Len(id) = %d, want 3", got)
	}
}

func TestPipeline_UniqueUsesStandardisedValue(t *testing.T) {
	cfg := schema.CsvConfig{
		StandardisationRules: map[string][]rules.StandardisationRuleName{"n": {rules.StdToInt}},
		ValidationRules:      map[string][]rules.ValidationRuleName{"n": {rules.ValUnique}},
	}
	p := newTestPipeline(t, cfg, []string{"n"}, ModeStrict, ValidateRaw)
	seen := NewSeenSets()

	if _, errs := p.Process(rawRow(0, map[string]string{"n": "7"}), seen); len(errs) != 0 {
		t.Fatalf("first row errors = %+v", errs)
	}
	_, errs := p.Process(rawRow(1, map[string]string{"n": " 7.0 "}), seen)
	if got := ruleNames(errs); !reflect.DeepEqual(got, []string{"unique"}) {
		t.Errorf("second row rules = %v, want [unique]", got)
	}
}

func TestPipeline_ChainOrder(t *testing.T) {
	tests := []struct {
		name      string
		chain     []rules.StandardisationRuleName
		wantValue any
		wantRules []string
	}{
		{
			name:      "int then lower case fails at lower case",
			chain:     []rules.StandardisationRuleName{rules.StdToInt, rules.StdToLowerCase},
			wantRules: []string{"toLowerCase"},
		},
		{
			name:      "lower case then int succeeds",
			chain:     []rules.StandardisationRuleName{rules.StdToLowerCase, rules.StdToInt},
			wantValue: int64(42),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := schema.CsvConfig{
				StandardisationRules: map[string][]rules.StandardisationRuleName{"v": tt.chain},
			}
			p := newTestPipeline(t, cfg, []string{"v"}, ModeStrict, ValidateRaw)
			row, errs := p.Process(rawRow(0, map[string]string{"v": "42"}), NewSeenSets())

			if got := ruleNames(errs); !reflect.DeepEqual(got, tt.wantRules) {
				t.Fatalf("error rules = %v, want %v", got, tt.wantRules)
			}
			if tt.wantRules != nil {
				if errs[0].RuleKind != "standardisation" {
					t.Errorf("RuleKind = %q, want standardisation", errs[0].RuleKind)
				}
				return
			}
			if row == nil || row.Values["v"] != tt.wantValue {
				t.Errorf("row = %+v, want v=%v", row, tt.wantValue)
			}
		})
	}
}

func TestPipeline_FailurePolicy(t *testing.T) {
	cfg := schema.CsvConfig{
		StandardisationRules: map[string][]rules.StandardisationRuleName{"total": {rules.StdToInt}},
		ValidationRules:      map[string][]rules.ValidationRuleName{"total": {rules.ValNotNull, rules.ValPositiveNumber}},
	}

	tests := []struct {
		name   string
		policy FailurePolicy
		want   []string
	}{
		{name: "validate raw", policy: ValidateRaw, want: []string{"toInt", "notNull", "positiveNumber"}},
		{name: "skip validation", policy: SkipValidation, want: []string{"toInt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, cfg, []string{"total"}, ModeStrict, tt.policy)
			_, errs := p.Process(rawRow(0, map[string]string{"total": " "}), NewSeenSets())
			if got := ruleNames(errs); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("error rules = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPipeline_StandardisationReasonCitesRawText(t *testing.T) {
	tests := []struct {
		name  string
		chain []rules.StandardisationRuleName
		raw   string
		want  string
	}{
		{name: "single step", chain: []rules.StandardisationRuleName{rules.StdToInt}, raw: "abc", want: `cannot convert "abc" to int`},
		{name: "after trim", chain: []rules.StandardisationRuleName{rules.StdTrimSpaces, rules.StdToInt}, raw: " ", want: `cannot convert "" to int (raw value " ")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := schema.CsvConfig{
				StandardisationRules: map[string][]rules.StandardisationRuleName{"total": tt.chain},
			}
			p := newTestPipeline(t, cfg, []string{"total"}, ModeStrict, ValidateRaw)
			_, errs := p.Process(rawRow(0, map[string]string{"total": tt.raw}), NewSeenSets())
			if len(errs) != 1 {
				t.Fatalf("errors = %+v, want 1", errs)
			}
			if errs[0].Reason != tt.want {
				t.Errorf("reason = %q, want %q", errs[0].Reason, tt.want)
			}
			if errs[0].RawValue != tt.raw {
				t.Errorf("raw value = %q, want %q", errs[0].RawValue, tt.raw)
			}
		})
	}
}

func TestPipeline_LenientKeepsPassingColumns(t *testing.T) {
	cfg := schema.CsvConfig{
		StandardisationRules: map[string][]rules.StandardisationRuleName{"age": {rules.StdToInt}},
		ValidationRules: map[string][]rules.ValidationRuleName{
			"age":  {rules.ValNotNegative},
			"name": {rules.ValNotNull},
		},
	}
	p := newTestPipeline(t, cfg, []string{"name", "age", "note"}, ModeLenient, ValidateRaw)

	row, errs := p.Process(rawRow(0, map[string]string{"name": "Ann", "age": "-3", "note": "x"}), NewSeenSets())
	if len(errs) != 1 || errs[0].ColumnKey != "age" {
		t.Fatalf("errors = %+v, want one on age", errs)
	}
	if row == nil {
		t.Fatal("lenient row should be kept")
	}
	want := map[string]any{"name": "Ann", "note": "x"}
	if !reflect.DeepEqual(row.Values, want) {
		t.Errorf("Values = %v, want %v", row.Values, want)
	}
}

func TestPipeline_MalformedRow(t *testing.T) {
	cfg := schema.CsvConfig{
		ValidationRules: map[string][]rules.ValidationRuleName{"a": {rules.ValNotNull}},
	}
	p := newTestPipeline(t, cfg, []string{"a", "b", "c"}, ModeLenient, ValidateRaw)

	raw := ingest.RawRow{
		Index:      3,
		Line:       5,
		Fields:     map[string]string{"a": "x", "b": "y"},
		Malformed:  true,
		FieldCount: 2,
	}
	row, errs := p.Process(raw, NewSeenSets())
	if row != nil {
		t.Errorf("malformed row should never be kept, got %+v", row)
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	e := errs[0]
	if e.RuleName != rules.MalformedRow || e.RuleKind != RuleKindRow || e.Line != 5 || e.RawValue != "x,y" {
		t.Errorf("unexpected record %+v", e)
	}
}

func TestPipeline_MissingColumns(t *testing.T) {
	cfg := schema.CsvConfig{
		ValidationRules: map[string][]rules.ValidationRuleName{
			"zip":  {rules.ValNotNull},
			"city": {rules.ValString},
			"name": {rules.ValString},
		},
	}
	p := newTestPipeline(t, cfg, []string{"name"}, ModeLenient, ValidateRaw)

	if got, want := p.MissingColumns(), []string{"city", "zip"}; !reflect.DeepEqual(got, want) {
		t.Errorf("MissingColumns() = %v, want %v", got, want)
	}
	if got, want := p.Columns(), []string{"name", "city", "zip"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Columns() = %v, want %v", got, want)
	}

	row, errs := p.Process(rawRow(0, map[string]string{"name": "Bo"}), NewSeenSets())
	if got := ruleNames(errs); !reflect.DeepEqual(got, []string{"notNull"}) {
		t.Errorf("error rules = %v, want [notNull]", got)
	}
	if row == nil || row.Values["city"] != "" {
		t.Errorf("missing column should be processed as empty, row = %+v", row)
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	cfg := schema.CsvConfig{
		StandardisationRules: map[string][]rules.StandardisationRuleName{
			"name": {rules.StdTrimSpaces, rules.StdToLowerCase},
			"tags": {rules.StdToArray},
		},
	}
	p := newTestPipeline(t, cfg, []string{"name", "tags"}, ModeStrict, ValidateRaw)

	first, errs := p.Process(rawRow(0, map[string]string{"name": "  Jean   PAUL ", "tags": "[a, b]"}), NewSeenSets())
	if len(errs) != 0 || first == nil {
		t.Fatalf("first pass errors = %+v", errs)
	}

	again := map[string]string{
		"name": first.Values["name"].(string),
		"tags": rules.FormatValue(first.Values["tags"]),
	}
	second, errs := p.Process(rawRow(0, again), NewSeenSets())
	if len(errs) != 0 || second == nil {
		t.Fatalf("second pass errors = %+v", errs)
	}
	if !reflect.DeepEqual(first.Values, second.Values) {
		t.Errorf("second pass = %v, want %v", second.Values, first.Values)
	}
}

func TestNewPipeline_UnknownRule(t *testing.T) {
	cfg := schema.CsvConfig{
		ValidationRules: map[string][]rules.ValidationRuleName{"x": {"isPrime"}},
	}
	if _, err := NewPipeline(testRegistry, cfg, []string{"x"}, ModeStrict, ValidateRaw); err == nil {
		t.Error("NewPipeline() should reject an unknown rule")
	}
}
