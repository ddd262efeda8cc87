package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/csvclean/internal/core"
)

// Paths returns the cleaned and error file paths for a source file in dir.
func Paths(dir, file string, format ErrorFormat) (cleaned, errs string) {
	base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	cleaned = filepath.Join(dir, base+".clean.csv")
	errs = filepath.Join(dir, base+".errors."+format.Extension())
	return cleaned, errs
}

// WriteFiles writes result to <base>.clean.csv and <base>.errors.<ext> in
// dir. Each file is written to a temporary file and renamed into place, so a
// failed run never leaves a truncated output behind.
func WriteFiles(result *core.RunResult, dir string, opts Options) (WriteSummary, error) {
	if result.Incomplete {
		return WriteSummary{}, ErrIncompleteRun
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WriteSummary{}, &SinkWriteError{Sink: dir, Err: err}
	}

	cleanedPath, errsPath := Paths(dir, result.File, opts.ErrorFormat)

	err := writeAtomic(cleanedPath, func(w io.Writer) error {
		return WriteCleaned(w, result, opts)
	})
	if err != nil {
		return WriteSummary{}, err
	}

	err = writeAtomic(errsPath, func(w io.Writer) error {
		return WriteErrors(w, result.Errors, opts.ErrorFormat)
	})
	if err != nil {
		return WriteSummary{}, err
	}

	return Summarize(result), nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &SinkWriteError{Sink: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return &SinkWriteError{Sink: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &SinkWriteError{Sink: path, Err: err}
	}
	return nil
}

// PrintSummary writes a human-readable table of summaries to w.
func PrintSummary(w io.Writer, summaries []WriteSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tROWS IN\tCLEANED\tWITH ERRORS\tTOP RULES")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n",
			s.File, s.RowsIn, s.RowsCleaned, s.RowsWithErrors, topRules(s.ErrorCountByRule, 3))
	}
	return tw.Flush()
}

// topRules formats the n most frequent rules as "rule=count", ties by name.
func topRules(counts map[string]int, n int) string {
	if len(counts) == 0 {
		return "-"
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
	if len(names) > n {
		names = names[:n]
	}
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, counts[name])
	}
	return strings.Join(parts, " ")
}
