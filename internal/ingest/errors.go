package ingest

import "fmt"

// SourceError reports that a source could not be opened, decoded or read.
type SourceError struct {
	Path string
	Op   string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
