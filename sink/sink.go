// Package sink publishes a run's new records to their final destination.
package sink

import (
	"context"

	"github.com/pevans/historybrief/record"
)

// Destination identifies where a run's records go: a Notion database, an
// archive run directory.
type Destination struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Result counts the outcome of a Publish call.
type Result struct {
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
}

// Add merges o into r.
func (r *Result) Add(o Result) {
	r.SuccessCount += o.SuccessCount
	r.ErrorCount += o.ErrorCount
}

// Sink publishes records. Prepare resolves the destination once per run;
// Publish attempts every record independently and never stops at the first
// failure.
type Sink interface {
	Prepare(ctx context.Context) (Destination, error)
	Publish(ctx context.Context, dest Destination, records []record.Record) Result
}
