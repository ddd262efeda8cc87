package core

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvclean/internal/ingest"
	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

// DefaultChunkSize is the number of rows evaluated per parallel chunk.
const DefaultChunkSize = 1000

// Options control one file run.
type Options struct {
	Mode   Mode
	Policy FailurePolicy

	// Workers bounds parallel row evaluation within a file; 0 means GOMAXPROCS.
	Workers int
	// ChunkSize is the number of rows read before evaluating them; 0 means DefaultChunkSize.
	ChunkSize int

	// Registry resolves rule names; nil means the default frozen registry.
	Registry *rules.Registry
	Logger   *slog.Logger
}

var defaultRegistry = sync.OnceValues(func() (*rules.Registry, error) {
	return rules.DefaultRegistry()
})

func (o Options) withDefaults() (Options, error) {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Registry == nil {
		reg, err := defaultRegistry()
		if err != nil {
			return o, err
		}
		o.Registry = reg
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o, nil
}

// RunResult is the outcome of processing one file.
type RunResult struct {
	RunID uuid.UUID
	File  string

	// Header lists the output columns: the canonical source header followed
	// by configured columns the source lacks.
	Header []string
	// ColumnOrder is the configured output order, if any.
	ColumnOrder []string
	// Configured is false when the file had no config and was passed through.
	Configured     bool
	MissingColumns []string

	Mode   Mode
	Policy FailurePolicy

	CleanedRows     []CleanedRow
	Errors          []ErrorRecord
	SourceRowCount  int
	CleanedRowCount int
	// SourceBytes is the number of source bytes consumed.
	SourceBytes int64

	// Incomplete marks a cancelled run. Its rows must not be written as a
	// finished dataset.
	Incomplete bool
	Duration   time.Duration
}

// Process cleans the file at path with the config registered for its
// basename. Files without a config are passed through unchanged.
func Process(ctx context.Context, path string, rs schema.RulesByCsv, opts Options) (*RunResult, error) {
	cfg, configured := schema.Get(rs, path)
	if !configured {
		cfg = schema.Identity()
	}

	rows, err := ingest.Open(path, cfg, ingest.Options{PassThrough: !configured})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return run(ctx, rows, filepath.Base(path), cfg, configured, opts)
}

// ProcessReader is Process for an in-memory source named name.
func ProcessReader(ctx context.Context, r io.Reader, name string, rs schema.RulesByCsv, opts Options) (*RunResult, error) {
	cfg, configured := schema.Get(rs, name)
	if !configured {
		cfg = schema.Identity()
	}

	rows, err := ingest.New(r, name, cfg, ingest.Options{PassThrough: !configured})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return run(ctx, rows, filepath.Base(name), cfg, configured, opts)
}

func run(ctx context.Context, rows *ingest.Rows, name string, cfg schema.CsvConfig, configured bool, opts Options) (*RunResult, error) {
	start := time.Now()

	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	pipeline, err := NewPipeline(opts.Registry, cfg, rows.Header(), opts.Mode, opts.Policy)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:          uuid.New(),
		File:           name,
		Header:         pipeline.Columns(),
		ColumnOrder:    append([]string(nil), cfg.ColumnOrder...),
		Configured:     configured,
		MissingColumns: pipeline.MissingColumns(),
		Mode:           opts.Mode,
		Policy:         opts.Policy,
	}

	logger := opts.Logger.With("file", name, "run_id", result.RunID.String())
	if len(result.MissingColumns) > 0 {
		logger.Warn("configured columns missing from source header",
			"columns", result.MissingColumns)
	}
	if !configured {
		logger.Info("no config for file, passing rows through")
	}

	seen := NewSeenSets()
	chunk := make([]ingest.RawRow, 0, opts.ChunkSize)
	outcomes := make([]RowOutcome, opts.ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			result.Incomplete = true
			result.Duration = time.Since(start)
			logger.Warn("run cancelled", "rows_read", result.SourceRowCount, "error", err)
			return result, err
		}

		chunk = chunk[:0]
		for len(chunk) < opts.ChunkSize && rows.Next() {
			chunk = append(chunk, rows.Row())
		}
		if err := rows.Err(); err != nil {
			result.Incomplete = true
			result.Duration = time.Since(start)
			return result, err
		}
		if len(chunk) == 0 {
			break
		}

		evaluateChunk(pipeline, chunk, outcomes[:len(chunk)], opts.Workers)

		for i := range chunk {
			cleaned, errs := pipeline.Finalize(outcomes[i], seen)
			if cleaned != nil {
				result.CleanedRows = append(result.CleanedRows, *cleaned)
			}
			result.Errors = append(result.Errors, errs...)
			outcomes[i] = RowOutcome{}
		}
		result.SourceRowCount += len(chunk)
		result.SourceBytes = rows.BytesRead()

		logger.Debug("chunk processed",
			"rows_read", result.SourceRowCount,
			"bytes_read", result.SourceBytes,
			"progress", rows.Progress(),
		)
	}

	result.CleanedRowCount = len(result.CleanedRows)
	result.SourceBytes = rows.BytesRead()
	result.Duration = time.Since(start)

	logger.Info("run complete",
		"rows_in", result.SourceRowCount,
		"bytes_in", result.SourceBytes,
		"rows_cleaned", result.CleanedRowCount,
		"errors", len(result.Errors),
		"mode", result.Mode.String(),
		"duration", result.Duration,
	)
	return result, nil
}

// evaluateChunk evaluates chunk into out, split across at most workers
// goroutines. Each goroutine owns a contiguous slice of out.
func evaluateChunk(p *Pipeline, chunk []ingest.RawRow, out []RowOutcome, workers int) {
	if workers <= 1 || len(chunk) < 2*workers {
		for i, raw := range chunk {
			out[i] = p.Evaluate(raw)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)

	per := (len(chunk) + workers - 1) / workers
	for lo := 0; lo < len(chunk); lo += per {
		hi := min(lo+per, len(chunk))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				out[i] = p.Evaluate(chunk[i])
			}
			return nil
		})
	}
	_ = g.Wait()
}
