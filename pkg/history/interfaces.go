// Package history defines the session-scoped invocation log. The default
// backend is an in-memory SQLite database, so records live exactly as long as
// the daemon; pointing the DSN at a file or a Postgres server is an operator
// opt-in, not part of the invocation contract.
package history

import (
	"context"
	"time"
)

// Record is the persisted representation of one invocation.
type Record struct {
	InvocationID string
	ToolID       string
	Argv         []string
	ExitCode     int
	Stderr       string
	Success      bool
	Message      string
	// Error holds the bridge-level failure class (e.g. "process/exit_nonzero")
	// when the invocation did not produce a well-formed result; empty otherwise.
	Error      string
	DurationMs int64
	CreatedAt  time.Time
}

// Recorder appends invocation records.
type Recorder interface {
	Append(ctx context.Context, r Record) error
}

// Reader retrieves invocation records.
type Reader interface {
	Get(ctx context.Context, invocationID string) (Record, error)
	ListByTool(ctx context.Context, toolID string, limit int) ([]Record, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Store aggregates recorder and reader.
type Store interface {
	Recorder
	Reader
}
