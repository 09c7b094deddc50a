// Package discovery turns external sources into candidate records. Each
// source is handled by one adapter: feeds, listing pages read in place, or
// listing pages whose item pages are crawled one by one.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/pevans/historybrief/fetch"
	"github.com/pevans/historybrief/logger"
	"github.com/pevans/historybrief/record"
	"github.com/pevans/historybrief/sources"
)

// Adapter produces the candidate records of one source. Collect never fails:
// an adapter that cannot reach or parse its source returns an empty slice.
type Adapter interface {
	Name() string
	Collect(ctx context.Context) []record.Record
}

// Extractor turns a fetched document into records. Swapping the extractor is
// all that is needed when a source changes its layout.
type Extractor interface {
	Extract(raw []byte) ([]record.Record, error)
	// MaxItems caps how many admitted records are kept. Zero keeps all.
	MaxItems() int
}

// CollectFunc is the fallible form of Adapter.Collect.
type CollectFunc func(ctx context.Context) ([]record.Record, error)

type safeAdapter struct {
	name    string
	collect CollectFunc
	log     logger.Logger
}

// Safe wraps collect so that errors and panics are logged and become an
// empty result.
func Safe(name string, collect CollectFunc, log logger.Logger) Adapter {
	return &safeAdapter{name: name, collect: collect, log: log}
}

func (s *safeAdapter) Name() string {
	return s.name
}

func (s *safeAdapter) Collect(ctx context.Context) (records []record.Record) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Adapter panicked", logger.String("panic", fmt.Sprint(r)))
			records = []record.Record{}
		}
	}()

	out, err := s.collect(ctx)
	if err != nil {
		s.log.Error("Adapter failed", logger.Error(err))
		return []record.Record{}
	}
	if out == nil {
		out = []record.Record{}
	}

	s.log.Info("Adapter collected records",
		logger.Int("count", len(out)),
		logger.Duration("elapsed", time.Since(start)),
	)
	return out
}

// Admit applies the source's recency threshold and date policy. Undated
// records are dropped, kept, or stamped with today's date.
func Admit(src sources.Source, records []record.Record, now time.Time) []record.Record {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	policy := src.EffectiveDatePolicy()

	admitted := make([]record.Record, 0, len(records))
	for _, r := range records {
		if r.Date == nil {
			switch policy {
			case sources.DateKeep:
				admitted = append(admitted, r)
			case sources.DateToday:
				stamped := today
				r.Date = &stamped
				admitted = append(admitted, r)
			}
			continue
		}
		if src.Threshold.Admits(*r.Date, now) {
			admitted = append(admitted, r)
		}
	}
	return admitted
}

// Build creates the adapter for a source, wrapped by Safe.
func Build(src sources.Source, client *fetch.Client, log logger.Logger) (Adapter, error) {
	log = log.With(logger.String("source", src.Name))

	switch src.Adapter {
	case sources.AdapterFeed:
		ext, err := NewFeedExtractor(src)
		if err != nil {
			return nil, err
		}
		a := NewPageAdapter(src, src.FeedURL, ext, client)
		return Safe(src.Name, a.Fetch, log), nil

	case sources.AdapterListing:
		ext, err := NewListingExtractor(src)
		if err != nil {
			return nil, err
		}
		a := NewPageAdapter(src, src.URL, ext, client)
		return Safe(src.Name, a.Fetch, log), nil

	case sources.AdapterCrawl:
		a, err := NewCrawlAdapter(src, client, log)
		if err != nil {
			return nil, err
		}
		return Safe(src.Name, a.Fetch, log), nil
	}

	return nil, fmt.Errorf("%s: %w", src.Name, sources.ErrInvalidAdapter)
}

// BuildAll creates adapters for the enabled sources, in order.
func BuildAll(list []sources.Source, client *fetch.Client, log logger.Logger) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(list))
	for _, src := range sources.Enabled(list) {
		a, err := Build(src, client, log)
		if err != nil {
			return nil, fmt.Errorf("failed to build adapter: %w", err)
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// PageAdapter fetches a single document and hands it to an Extractor. It
// serves feeds and listing pages.
type PageAdapter struct {
	source    sources.Source
	url       string
	extractor Extractor
	client    *fetch.Client
	now       func() time.Time
}

// NewPageAdapter creates an adapter reading url with extractor.
func NewPageAdapter(src sources.Source, url string, extractor Extractor, client *fetch.Client) *PageAdapter {
	return &PageAdapter{
		source:    src,
		url:       url,
		extractor: extractor,
		client:    client,
		now:       time.Now,
	}
}

// Fetch downloads the document, extracts records and applies the source's
// date rules. The item cap applies to admitted records only, so stale entries
// at the top of a feed do not hide recent ones.
func (a *PageAdapter) Fetch(ctx context.Context) ([]record.Record, error) {
	raw, err := a.client.Page(ctx, a.url)
	if err != nil {
		return nil, err
	}

	records, err := a.extractor.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", a.url, err)
	}

	return Cap(Admit(a.source, records, a.now()), a.extractor.MaxItems()), nil
}

// Cap keeps the first n records. A non-positive n keeps all.
func Cap(records []record.Record, n int) []record.Record {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}
