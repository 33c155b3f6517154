// Package collector gathers workspace state that is reported alongside a
// session, such as the final git status written into the summary footer.
package collector

import (
	"context"

	"github.com/guntarion/convlog/internal/session"
)

// Collector gathers one category of workspace state for a session.
type Collector interface {
	// Collect runs the collection logic. Problems that should not fail the
	// caller are returned in Result.Warnings.
	Collect(ctx context.Context, rec *session.Record) (Result, error)
}

// Result holds the output of a single collector.
type Result struct {
	Git      GitStatus // populated by GitCollector
	Warnings []string  // non-fatal issues encountered
}
