// Package store keeps finished runs so the HTTP service can serve their
// outputs after the request that produced them. PostgreSQL is used when a
// database is configured; otherwise runs live in memory.
package store

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/report"
)

// ErrNotFound is returned for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Run is the stored metadata of one finished run.
type Run struct {
	ID         uuid.UUID           `json:"id"`
	File       string              `json:"file"`
	Mode       string              `json:"mode"`
	Policy     string              `json:"policy"`
	Configured bool                `json:"configured"`
	Header     []string            `json:"header"`
	Missing    []string            `json:"missing_columns,omitempty"`
	Summary    report.WriteSummary `json:"summary"`
	DurationMS int64               `json:"duration_ms"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Stored is a run together with its outputs.
type Stored struct {
	Run     Run
	Cleaned []byte
	Errors  []core.ErrorRecord
}

// Store persists runs.
type Store interface {
	SaveRun(ctx context.Context, s Stored) error
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	// ListRuns returns at most limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Cleaned(ctx context.Context, id uuid.UUID) ([]byte, error)
	Errors(ctx context.Context, id uuid.UUID) ([]core.ErrorRecord, error)
	// Prune deletes runs created before cutoff and returns how many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// FromResult renders result's cleaned output and builds the record to store.
func FromResult(result *core.RunResult, opts report.Options, now time.Time) (Stored, error) {
	var cleaned bytes.Buffer
	sum, err := report.Write(result, &cleaned, nil, opts)
	if err != nil {
		return Stored{}, err
	}

	return Stored{
		Run: Run{
			ID:         result.RunID,
			File:       result.File,
			Mode:       result.Mode.String(),
			Policy:     result.Policy.String(),
			Configured: result.Configured,
			Header:     report.OutputColumns(result),
			Missing:    result.MissingColumns,
			Summary:    sum,
			DurationMS: result.Duration.Milliseconds(),
			CreatedAt:  now.UTC(),
		},
		Cleaned: cleaned.Bytes(),
		Errors:  result.Errors,
	}, nil
}
