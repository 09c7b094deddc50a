package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pevans/historybrief/logger"
	"github.com/pevans/historybrief/record"
	"github.com/pevans/historybrief/seen"
	"github.com/pevans/historybrief/sink"
)

// SourceCount is the number of candidates and new records of one source.
type SourceCount struct {
	Source     string `json:"source"`
	Candidates int    `json:"candidates"`
	New        int    `json:"new"`
}

// Summary reports a finished run.
type Summary struct {
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
	Candidates  int              `json:"candidates"`
	New         int              `json:"new"`
	Sources     []SourceCount    `json:"sources"`
	Destination sink.Destination `json:"destination"`
	Published   sink.Result      `json:"published"`
	// Records are the new records of the run.
	Records []record.Record `json:"-"`
}

// Runner wires the collector, the seen filter and a sink.
type Runner struct {
	collector *Collector
	filter    *seen.Filter
	sink      sink.Sink
	log       logger.Logger
	now       func() time.Time
}

// NewRunner creates a runner.
func NewRunner(collector *Collector, filter *seen.Filter, s sink.Sink, log logger.Logger) *Runner {
	return &Runner{collector: collector, filter: filter, sink: s, log: log, now: time.Now}
}

// Run performs one run. New records are marked seen before the sink is
// touched, so a failed publish is never retried. When nothing is new, the
// sink is not prepared.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: r.now()}
	r.log.Info("Run started", logger.Int("sources", len(r.collector.adapters)))

	candidates := r.collector.CollectAll(ctx)
	summary.Candidates = len(candidates)

	fresh, err := r.filter.FilterNew(ctx, candidates)
	if err != nil {
		return summary, fmt.Errorf("failed to filter candidates: %w", err)
	}
	summary.New = len(fresh)
	summary.Records = fresh
	summary.Sources = countSources(r.collector.Names(), candidates, fresh)

	if len(fresh) == 0 {
		r.log.Info("No new records")
		summary.FinishedAt = r.now()
		return summary, nil
	}

	dest, err := r.sink.Prepare(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to prepare sink: %w", err)
	}
	summary.Destination = dest

	summary.Published = r.sink.Publish(ctx, dest, fresh)
	summary.FinishedAt = r.now()

	r.log.Info("Run finished",
		logger.Int("candidates", summary.Candidates),
		logger.Int("new", summary.New),
		logger.Int("published", summary.Published.SuccessCount),
		logger.Int("errors", summary.Published.ErrorCount),
		logger.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// countSources tallies records per source, in adapter order. Sources not
// named by an adapter are appended in first-seen order.
func countSources(names []string, candidates, fresh []record.Record) []SourceCount {
	index := make(map[string]int, len(names))
	counts := make([]SourceCount, 0, len(names))
	add := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		index[name] = len(counts)
		counts = append(counts, SourceCount{Source: name})
		return len(counts) - 1
	}

	for _, n := range names {
		add(n)
	}
	for _, c := range candidates {
		counts[add(c.Source)].Candidates++
	}
	for _, f := range fresh {
		counts[add(f.Source)].New++
	}
	return counts
}
