package ingest

import "fmt"

// FailureKind classifies where in a file's lifecycle an error occurred.
type FailureKind string

const (
	FailureParse    FailureKind = "parse"
	FailureAgent    FailureKind = "agent"
	FailureDatabase FailureKind = "database"
)

// FileError is a per-file failure. The orchestrator converts any FileError
// into the failed filename marker and moves on to the next file; nothing
// propagates past a single file's lifecycle.
type FileError struct {
	Kind FailureKind
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s failure for %s: %v", e.Kind, e.Path, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }
