package ingest

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/JonMunkholm/csvclean/internal/schema"
)

func collect(t *testing.T, rows *Rows) []RawRow {
	t.Helper()
	var out []RawRow
	for rows.Next() {
		out = append(out, rows.Row())
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	return out
}

func TestRows_HeaderAndRename(t *testing.T) {
	cfg := schema.CsvConfig{
		HeaderRows:    []int{0},
		RenameColumns: map[string]string{"Total": "total", "Région": "region"},
	}
	src := "Commune, Région ,Total\nLyon,ARA,5\nNice,PACA,7\n"

	rows, err := New(strings.NewReader(src), "t.csv", cfg, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer rows.Close()

	if got, want := rows.Header(), []string{"Commune", "region", "total"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Header() = %v, want %v", got, want)
	}

	got := collect(t, rows)
	want := []RawRow{
		{Index: 0, Line: 1, Fields: map[string]string{"Commune": "Lyon", "region": "ARA", "total": "5"}, FieldCount: 3},
		{Index: 1, Line: 2, Fields: map[string]string{"Commune": "Nice", "region": "PACA", "total": "7"}, FieldCount: 3},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %+v, want %+v", got, want)
	}
}

func TestRows_HeaderSkipAndBlankLines(t *testing.T) {
	cfg := schema.CsvConfig{
		HeaderRows: []int{2, 3},
		SkipRows:   []int{5},
	}
	src := strings.Join([]string{
		"Export licences 2023", // 0: before header, dropped
		"",                     // 1: empty
		"a,b",                  // 2: header
		"A,B",                  // 3: second header line, excluded
		"1,2",                  // 4
		"skip,me",              // 5: skipped
		"  ",                   // 6: blank
		"3,4",                  // 7
	}, "\n")

	rows, err := New(strings.NewReader(src), "t.csv", cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, rows)

	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(got), got)
	}
	if got[0].Line != 4 || got[0].Fields["a"] != "1" {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[1].Index != 1 || got[1].Line != 7 || got[1].Fields["b"] != "4" {
		t.Errorf("row 1 = %+v", got[1])
	}
}

func TestRows_MissingFirstHeaderLine(t *testing.T) {
	cfg := schema.CsvConfig{HeaderRows: []int{0, 1}}
	rows, err := New(strings.NewReader("\nx,y\n1,2\n"), "t.csv", cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := rows.Header(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Header() = %v", got)
	}
	if got := collect(t, rows); len(got) != 1 {
		t.Errorf("got %d rows, want 1", len(got))
	}
}

func TestRows_SingleColumnWhitespaceIsData(t *testing.T) {
	rows, err := New(strings.NewReader("Total\n5\n-2\n \nabc"), "t.csv", schema.Identity(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	var values []string
	for _, r := range collect(t, rows) {
		values = append(values, r.Fields["Total"])
	}
	if want := []string{"5", "-2", " ", "abc"}; !reflect.DeepEqual(values, want) {
		t.Errorf("values = %q, want %q", values, want)
	}
}

func TestRows_ShortAndLongLines(t *testing.T) {
	src := "a,b,c\n1,2\n1,2,3,4\n"

	t.Run("configured", func(t *testing.T) {
		rows, err := New(strings.NewReader(src), "t.csv", schema.Identity(), Options{})
		if err != nil {
			t.Fatal(err)
		}
		got := collect(t, rows)
		if !got[0].Malformed || got[0].FieldCount != 2 {
			t.Errorf("short line = %+v, want malformed", got[0])
		}
		if got[1].Malformed || len(got[1].Fields) != 3 {
			t.Errorf("long line = %+v, want extra field ignored", got[1])
		}
	})

	t.Run("pass-through", func(t *testing.T) {
		rows, err := New(strings.NewReader(src), "t.csv", schema.Identity(), Options{PassThrough: true})
		if err != nil {
			t.Fatal(err)
		}
		got := collect(t, rows)
		if got[0].Malformed {
			t.Errorf("short line malformed in pass-through")
		}
		if v, ok := got[0].Fields["c"]; !ok || v != "" {
			t.Errorf("short line not padded: %+v", got[0])
		}
	})
}

func TestRows_DuplicateHeaders(t *testing.T) {
	rows, err := New(strings.NewReader("name,name,name\n1,2,3\n"), "t.csv", schema.Identity(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := rows.Header(), []string{"name", "name_2", "name_3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Header() = %v, want %v", got, want)
	}
}

func TestRows_QuotedFields(t *testing.T) {
	src := "a,b\n\"x, y\",\"multi\nline\"\n3,4\n"
	rows, err := New(strings.NewReader(src), "t.csv", schema.Identity(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, rows)
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].Fields["a"] != "x, y" || got[0].Fields["b"] != "multi\nline" {
		t.Errorf("row 0 = %+v", got[0])
	}
	if got[1].Line != 3 {
		t.Errorf("row 1 line = %d, want 3", got[1].Line)
	}
}

func TestRows_DelimiterAndEncoding(t *testing.T) {
	cfg := schema.CsvConfig{Delimiter: ";", Encoding: "windows-1252"}
	// "Fédération;Total\nFF d'Escrime;12\n" in Windows-1252
	src := []byte("F\xe9d\xe9ration;Total\nFF d'Escrime;12\n")

	rows, err := New(bytes.NewReader(src), "t.csv", cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := rows.Header(); !reflect.DeepEqual(got, []string{"Fédération", "Total"}) {
		t.Errorf("Header() = %q", got)
	}
	got := collect(t, rows)
	if got[0].Fields["Fédération"] != "FF d'Escrime" || got[0].Fields["Total"] != "12" {
		t.Errorf("row = %+v", got[0])
	}
}

func TestRows_UTF8BOMAndInvalidBytes(t *testing.T) {
	src := append([]byte{0xEF, 0xBB, 0xBF}, []byte("id,name\n1,he\x80lo\n")...)

	rows, err := New(bytes.NewReader(src), "t.csv", schema.Identity(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := rows.Header(); got[0] != "id" {
		t.Errorf("BOM not stripped: header = %q", got)
	}
	got := collect(t, rows)
	if got[0].Fields["name"] != "he\uFFFDlo" {
		t.Errorf("name = %q, want replacement character", got[0].Fields["name"])
	}
}

func TestRows_EmptySource(t *testing.T) {
	rows, err := New(strings.NewReader(""), "t.csv", schema.Identity(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rows.Header() != nil {
		t.Errorf("Header() = %v, want nil", rows.Header())
	}
	if rows.Next() {
		t.Error("Next() = true on empty source")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.csv")
	content := "a\n1\n2\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rows, err := Open(path, schema.Identity(), Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if n := len(collect(t, rows)); n != 2 {
		t.Errorf("got %d rows, want 2", n)
	}
	if got := rows.BytesRead(); got != int64(len(content)) {
		t.Errorf("BytesRead() = %d, want %d", got, len(content))
	}
	if got := rows.Progress(); got != 100 {
		t.Errorf("Progress() = %d, want 100", got)
	}
	if err := rows.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	_, err = Open(filepath.Join(dir, "missing.csv"), schema.Identity(), Options{})
	var srcErr *SourceError
	if !errors.As(err, &srcErr) || srcErr.Op != "open" {
		t.Errorf("Open(missing) error = %v, want SourceError{Op: open}", err)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestRows_ReadError(t *testing.T) {
	boom := errors.New("disk on fire")
	src := io.MultiReader(strings.NewReader("a\n1\n"), failingReader{boom})

	rows, err := New(src, "t.csv", schema.Identity(), Options{})
	if err != nil {
		// The header read may already hit the failure on small buffers.
		if !errors.Is(err, boom) {
			t.Fatalf("New() error = %v", err)
		}
		return
	}
	for rows.Next() {
	}
	if !errors.Is(rows.Err(), boom) {
		t.Errorf("Err() = %v, want %v", rows.Err(), boom)
	}
}
