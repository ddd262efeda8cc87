package web

// views.go holds the HTML pages. They are small enough to build with
// templ.ComponentFunc directly; every dynamic value goes through
// templ.EscapeString.

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/store"
)

// maxPageErrors caps the error records rendered on a run page.
const maxPageErrors = 200

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#222}
table{border-collapse:collapse;margin:1rem 0}th,td{border:1px solid #ccc;padding:.3rem .6rem;text-align:left}
th{background:#f3f3f3}.muted{color:#777}.err{color:#a00}`

func esc(s string) string { return templ.EscapeString(s) }

// page wraps body in the shared HTML layout.
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!doctype html><html lang="en"><head><meta charset="utf-8"><title>%s</title><style>%s</style></head><body><h1><a href="/">csvclean</a></h1>`,
			esc(title), pageStyle); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func uploadForm() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<h2>New run</h2>
<form method="post" action="/api/runs" enctype="multipart/form-data">
<input type="file" name="file" accept=".csv,text/csv" required>
<input type="text" name="name" placeholder="config file name (optional)">
<button type="submit">Clean</button>
</form>`)
		return err
	})
}

// runsIndex lists recent runs, newest first.
func runsIndex(runs []store.Run) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := uploadForm().Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<h2>Recent runs</h2>`); err != nil {
			return err
		}
		if len(runs) == 0 {
			_, err := io.WriteString(w, `<p class="muted">No runs yet.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<table><tr><th>File</th><th>Mode</th><th>Rows in</th><th>Cleaned</th><th>With errors</th><th>Created</th></tr>`); err != nil {
			return err
		}
		for _, run := range runs {
			if _, err := fmt.Fprintf(w, `<tr><td><a href="/runs/%s">%s</a></td><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td></tr>`,
				esc(run.ID.String()), esc(run.File), esc(run.Mode),
				run.Summary.RowsIn, run.Summary.RowsCleaned, run.Summary.RowsWithErrors,
				esc(run.CreatedAt.Format("2006-01-02 15:04:05"))); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</table>`)
		return err
	})
	return page("Runs", body)
}

// runDetail shows one run's summary, rule counts and first errors.
func runDetail(run store.Run, records []core.ErrorRecord) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		id := esc(run.ID.String())
		if _, err := fmt.Fprintf(w, `<h2>%s</h2><p class="muted">%s mode, %s, %d ms</p>`,
			esc(run.File), esc(run.Mode), esc(run.Policy), run.DurationMS); err != nil {
			return err
		}
		if !run.Configured {
			if _, err := io.WriteString(w, `<p class="muted">No rules configured for this file; rows were passed through.</p>`); err != nil {
				return err
			}
		}
		if len(run.Missing) > 0 {
			if _, err := fmt.Fprintf(w, `<p class="err">Missing columns: %s</p>`, esc(fmt.Sprint(run.Missing))); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, `<table><tr><th>Rows in</th><th>Cleaned</th><th>With errors</th></tr><tr><td>%d</td><td>%d</td><td>%d</td></tr></table>
<p><a href="/api/runs/%s/cleaned">Download cleaned CSV</a> | <a href="/api/runs/%s/errors?format=csv">Errors (CSV)</a> | <a href="/api/runs/%s/errors?format=jsonl">Errors (JSONL)</a></p>`,
			run.Summary.RowsIn, run.Summary.RowsCleaned, run.Summary.RowsWithErrors, id, id, id); err != nil {
			return err
		}

		if err := ruleCounts(w, run.Summary.ErrorCountByRule); err != nil {
			return err
		}
		return errorTable(w, records)
	})
	return page(run.File, body)
}

func ruleCounts(w io.Writer, counts map[string]int) error {
	if len(counts) == 0 {
		return nil
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	if _, err := io.WriteString(w, `<h3>Errors by rule</h3><table><tr><th>Rule</th><th>Count</th></tr>`); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintf(w, `<tr><td>%s</td><td>%d</td></tr>`, esc(name), counts[name]); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</table>`)
	return err
}

func errorTable(w io.Writer, records []core.ErrorRecord) error {
	if len(records) == 0 {
		return nil
	}
	shown := records
	if len(shown) > maxPageErrors {
		shown = shown[:maxPageErrors]
	}
	if _, err := io.WriteString(w, `<h3>Errors</h3><table><tr><th>Line</th><th>Column</th><th>Rule</th><th>Value</th><th>Reason</th></tr>`); err != nil {
		return err
	}
	for _, rec := range shown {
		if _, err := fmt.Fprintf(w, `<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			rec.Line, esc(rec.ColumnKey), esc(rec.RuleName), esc(rec.RawValue), esc(rec.Reason)); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, `</table>`); err != nil {
		return err
	}
	if len(records) > len(shown) {
		_, err := io.WriteString(w, `<p class="muted">Showing the first `+strconv.Itoa(len(shown))+` of `+strconv.Itoa(len(records))+` errors.</p>`)
		return err
	}
	return nil
}
