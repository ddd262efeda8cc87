package report

import (
	"errors"
	"fmt"
)

// ErrIncompleteRun is returned when asked to publish a cancelled run.
var ErrIncompleteRun = errors.New("incomplete run: refusing to write partial output")

// SinkWriteError reports a failed write to the cleaned or error sink.
// Anything already written to that sink is partial.
type SinkWriteError struct {
	Sink string
	Err  error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("%s: sink write failed: %v", e.Sink, e.Err)
}

func (e *SinkWriteError) Unwrap() error { return e.Err }
