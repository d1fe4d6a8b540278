// Package runlog persists a summary record per pipeline run for offline
// quality analysis. Logging failures never affect the run itself.
package runlog

import (
	"context"
	"time"
)

// Record summarizes one completed pipeline run.
type Record struct {
	SessionID         string    `bson:"session_id" json:"session_id"`
	Query             string    `bson:"query" json:"query"`
	FinalAnswer       string    `bson:"final_answer" json:"final_answer"`
	SourceType        string    `bson:"source_type" json:"source_type"`
	Overall           float64   `bson:"overall" json:"overall"`
	Passed            bool      `bson:"passed" json:"passed"`
	Attempts          int       `bson:"attempts" json:"attempts"`
	DisclaimerApplied bool      `bson:"disclaimer_applied" json:"disclaimer_applied"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
}

// Logger persists run records.
type Logger interface {
	LogRun(ctx context.Context, rec *Record) error
	Close(ctx context.Context) error
}

// Noop discards all records. Used when no store is configured.
type Noop struct{}

func (Noop) LogRun(context.Context, *Record) error { return nil }
func (Noop) Close(context.Context) error           { return nil }
