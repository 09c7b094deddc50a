// Package pipeline runs the collection, filter and publish steps of a run.
package pipeline

import (
	"context"
	"sync"

	"github.com/pevans/historybrief/discovery"
	"github.com/pevans/historybrief/logger"
	"github.com/pevans/historybrief/record"
)

// Collector runs adapters and concatenates their records in configuration
// order.
type Collector struct {
	adapters []discovery.Adapter
	parallel bool
	log      logger.Logger
}

// NewCollector creates a collector. With parallel set, adapters run
// concurrently; each adapter still crawls its own items sequentially.
func NewCollector(adapters []discovery.Adapter, parallel bool, log logger.Logger) *Collector {
	return &Collector{adapters: adapters, parallel: parallel, log: log}
}

// Names returns the adapter names in order.
func (c *Collector) Names() []string {
	names := make([]string, len(c.adapters))
	for i, a := range c.adapters {
		names[i] = a.Name()
	}
	return names
}

// CollectAll returns every adapter's records, adapter by adapter, each in the
// order the adapter produced them. A failing adapter contributes nothing.
func (c *Collector) CollectAll(ctx context.Context) []record.Record {
	results := make([][]record.Record, len(c.adapters))

	if c.parallel {
		var wg sync.WaitGroup
		for i, a := range c.adapters {
			wg.Add(1)
			go func(i int, a discovery.Adapter) {
				defer wg.Done()
				results[i] = a.Collect(ctx)
			}(i, a)
		}
		wg.Wait()
	} else {
		for i, a := range c.adapters {
			if ctx.Err() != nil {
				c.log.Warn("Collection interrupted", logger.String("next_source", a.Name()))
				break
			}
			results[i] = a.Collect(ctx)
		}
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}

	all := make([]record.Record, 0, total)
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}
