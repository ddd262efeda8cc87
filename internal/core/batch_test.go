package core

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

func quietOptions(opts Options) Options {
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func totalRules() schema.RulesByCsv {
	return schema.RulesByCsv{
		"totals.csv": {
			HeaderRows:           []int{0},
			RenameColumns:        map[string]string{"Total": "total"},
			StandardisationRules: map[string][]rules.StandardisationRuleName{"total": {rules.StdToInt}},
			ValidationRules:      map[string][]rules.ValidationRuleName{"total": {rules.ValNotNull, rules.ValPositiveNumber}},
		},
	}
}

type ruleHit struct {
	Row  int
	Rule string
}

func hits(errs []ErrorRecord) []ruleHit {
	var out []ruleHit
	for _, e := range errs {
		out = append(out, ruleHit{Row: e.RowIndex, Rule: e.RuleName})
	}
	return out
}

func TestProcessReader_EndToEnd(t *testing.T) {
	const source = "Total\n5\n-2\n \nabc"

	tests := []struct {
		name   string
		policy FailurePolicy
		want   []ruleHit
	}{
		{
			name:   "validate raw",
			policy: ValidateRaw,
			want: []ruleHit{
				{1, "positiveNumber"},
				{2, "toInt"}, {2, "notNull"}, {2, "positiveNumber"},
				{3, "toInt"}, {3, "positiveNumber"},
			},
		},
		{
			name:   "skip validation",
			policy: SkipValidation,
			want: []ruleHit{
				{1, "positiveNumber"},
				{2, "toInt"},
				{3, "toInt"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := quietOptions(Options{Mode: ModeStrict, Policy: tt.policy})
			res, err := ProcessReader(context.Background(), strings.NewReader(source), "totals.csv", totalRules(), opts)
			if err != nil {
				t.Fatalf("ProcessReader() error = %v", err)
			}

			if res.SourceRowCount != 4 {
				t.Errorf("SourceRowCount = %d, want 4", res.SourceRowCount)
			}
			if res.CleanedRowCount != 1 || res.CleanedRows[0].Values["total"] != int64(5) {
				t.Errorf("CleanedRows = %+v, want only total=5", res.CleanedRows)
			}
			if got := hits(res.Errors); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("errors = %v, want %v", got, tt.want)
			}
			if !res.Configured || res.Incomplete {
				t.Errorf("Configured = %v, Incomplete = %v", res.Configured, res.Incomplete)
			}
		})
	}
}

func TestProcessReader_PassThrough(t *testing.T) {
	const source = "id,name\n1,Ann\n2,\n3"

	res, err := ProcessReader(context.Background(), strings.NewReader(source), "unknown.csv", totalRules(), quietOptions(Options{}))
	if err != nil {
		t.Fatalf("ProcessReader() error = %v", err)
	}
	if res.Configured {
		t.Error("Configured = true for a file without rules")
	}
	if len(res.Errors) != 0 {
		t.Errorf("pass-through produced errors: %+v", res.Errors)
	}

	want := []map[string]any{
		{"id": "1", "name": "Ann"},
		{"id": "2", "name": ""},
		{"id": "3", "name": ""},
	}
	if len(res.CleanedRows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(res.CleanedRows), len(want))
	}
	for i, row := range res.CleanedRows {
		if !reflect.DeepEqual(row.Values, want[i]) {
			t.Errorf("row %d = %v, want %v", i, row.Values, want[i])
		}
	}
	if !reflect.DeepEqual(res.Header, []string{"id", "name"}) {
		t.Errorf("Header = %v", res.Header)
	}
}

func TestProcessReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ProcessReader(ctx, strings.NewReader("Total\n1\n2\n"), "totals.csv", totalRules(), quietOptions(Options{}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if res == nil || !res.Incomplete {
		t.Fatalf("result = %+v, want Incomplete", res)
	}
}

func TestProcessReader_ParallelMatchesSequential(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,score,label\n")
	for i := 0; i < 500; i++ {
		score := fmt.Sprint(i%17 - 3)
		if i%29 == 0 {
			score = "n/a"
		}
		fmt.Fprintf(&b, "%d,%s,Item %d\n", i%137, score, i%5)
	}
	source := b.String()

	rs := schema.RulesByCsv{
		"scores.csv": {
			HeaderRows: []int{0},
			StandardisationRules: map[string][]rules.StandardisationRuleName{
				"score": {rules.StdToInt},
				"label": {rules.StdToUpperCase},
			},
			ValidationRules: map[string][]rules.ValidationRuleName{
				"id":    {rules.ValNotNull, rules.ValUnique},
				"score": {rules.ValNotNegative},
			},
			SourceColumns: []string{"id", "score", "label"},
		},
	}

	run := func(workers, chunk int, mode Mode) *RunResult {
		t.Helper()
		opts := quietOptions(Options{Mode: mode, Workers: workers, ChunkSize: chunk})
		res, err := ProcessReader(context.Background(), strings.NewReader(source), "scores.csv", rs, opts)
		if err != nil {
			t.Fatalf("ProcessReader() error = %v", err)
		}
		return res
	}

	for _, mode := range []Mode{ModeStrict, ModeLenient} {
		t.Run(mode.String(), func(t *testing.T) {
			seq := run(1, 1000, mode)
			par := run(8, 64, mode)

			if !reflect.DeepEqual(seq.Errors, par.Errors) {
				t.Errorf("errors differ: sequential %d, parallel %d", len(seq.Errors), len(par.Errors))
			}
			if !reflect.DeepEqual(seq.CleanedRows, par.CleanedRows) {
				t.Errorf("cleaned rows differ: sequential %d, parallel %d", len(seq.CleanedRows), len(par.CleanedRows))
			}
			if len(seq.Errors) == 0 {
				t.Error("fixture should produce errors")
			}
		})
	}
}

func TestProcessReader_MissingColumnsReported(t *testing.T) {
	rs := schema.RulesByCsv{
		"people.csv": {
			HeaderRows:      []int{0},
			ValidationRules: map[string][]rules.ValidationRuleName{"email": {rules.ValNotNull}},
			SourceColumns:   []string{"email"},
		},
	}

	res, err := ProcessReader(context.Background(), strings.NewReader("name\nAnn\n"), "people.csv", rs, quietOptions(Options{}))
	if err != nil {
		t.Fatalf("ProcessReader() error = %v", err)
	}
	if !reflect.DeepEqual(res.MissingColumns, []string{"email"}) {
		t.Errorf("MissingColumns = %v, want [email]", res.MissingColumns)
	}
	if !reflect.DeepEqual(res.Header, []string{"name", "email"}) {
		t.Errorf("Header = %v, want [name email]", res.Header)
	}
	if got := hits(res.Errors); !reflect.DeepEqual(got, []ruleHit{{0, "notNull"}}) {
		t.Errorf("errors = %v", got)
	}
}

func TestProcess_LogsChunkProgress(t *testing.T) {
	const source = "Total\n5\n6\n7\n"
	path := filepath.Join(t.TempDir(), "totals.csv")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	opts := Options{
		ChunkSize: 2,
		Workers:   1,
		Logger:    slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	res, err := Process(context.Background(), path, totalRules(), opts)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.SourceBytes != int64(len(source)) {
		t.Errorf("SourceBytes = %d, want %d", res.SourceBytes, len(source))
	}

	type chunkLog struct {
		Msg      string `json:"msg"`
		RowsRead int    `json:"rows_read"`
		Bytes    int64  `json:"bytes_read"`
		Progress int    `json:"progress"`
	}
	var chunks []chunkLog
	sc := bufio.NewScanner(&logs)
	for sc.Scan() {
		var entry chunkLog
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", sc.Text(), err)
		}
		if entry.Msg == "chunk processed" {
			chunks = append(chunks, entry)
		}
	}

	if len(chunks) != 2 {
		t.Fatalf("chunk logs = %+v, want 2", chunks)
	}
	last := chunks[len(chunks)-1]
	if last.RowsRead != 3 || last.Bytes != int64(len(source)) || last.Progress != 100 {
		t.Errorf("last chunk log = %+v, want 3 rows, %d bytes, 100%%", last, len(source))
	}
}
