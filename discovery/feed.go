package discovery

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pevans/historybrief/dates"
	"github.com/pevans/historybrief/record"
	"github.com/pevans/historybrief/scraper"
	"github.com/pevans/historybrief/sources"
)

// FeedExtractor maps RSS and Atom entries to records. gofeed normalizes both
// formats, so one mapping handles either.
type FeedExtractor struct {
	source   string
	kind     record.Type
	category string
	base     *url.URL
	config   scraper.FeedConfig
}

// NewFeedExtractor creates the extractor for a feed source.
func NewFeedExtractor(src sources.Source) (*FeedExtractor, error) {
	base, err := src.Origin()
	if err != nil {
		return nil, err
	}

	cfg := scraper.FeedConfig{}
	if src.Feed != nil {
		cfg = *src.Feed
	}

	return &FeedExtractor{
		source:   src.Name,
		kind:     src.Type,
		category: src.EffectiveCategory(),
		base:     base,
		config:   cfg.WithDefaults(),
	}, nil
}

// Extract parses raw as a feed.
func (e *FeedExtractor) Extract(raw []byte) ([]record.Record, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	records := make([]record.Record, 0, len(feed.Items))
	for _, item := range feed.Items {
		if r, ok := e.itemToRecord(item); ok {
			records = append(records, r)
		}
	}
	return records, nil
}

// MaxItems returns the configured cap. Zero keeps every entry.
func (e *FeedExtractor) MaxItems() int {
	return e.config.MaxItems
}

func (e *FeedExtractor) itemToRecord(item *gofeed.Item) (record.Record, bool) {
	title := cleanText(item.Title)
	link := resolveURL(e.base, item.Link)
	if title == "" || link == "" {
		return record.Record{}, false
	}

	snippet := stripHTML(feedBody(item))

	return record.Record{
		Title:       title,
		URL:         link,
		Description: record.Truncate(snippet, e.config.DescLimit),
		Author:      e.author(item, title, snippet),
		Date:        feedDate(item),
		Source:      e.source,
		Type:        e.kind,
		Category:    e.category,
	}, true
}

// author resolves guests for podcasts and the declared author otherwise.
func (e *FeedExtractor) author(item *gofeed.Item, title, snippet string) string {
	if e.kind == record.TypePodcast {
		if guests := Guests(title, snippet, e.config.GuestMarkers); len(guests) > 0 {
			return strings.Join(guests, ", ")
		}
		return record.UnknownGuests
	}

	if item.Author != nil && item.Author.Name != "" {
		return cleanText(item.Author.Name)
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return cleanText(a.Name)
		}
	}
	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator != "" {
				return cleanText(creator)
			}
		}
	}
	return placeholderAuthor(e.kind)
}

func feedBody(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	if item.Content != "" {
		return item.Content
	}
	if item.ITunesExt != nil {
		return item.ITunesExt.Summary
	}
	return ""
}

// feedDate uses the parsed published or updated time, then falls back to the
// date normalizer on the raw strings.
func feedDate(item *gofeed.Item) *time.Time {
	for _, parsed := range []*time.Time{item.PublishedParsed, item.UpdatedParsed} {
		if parsed != nil && !parsed.IsZero() {
			t := parsed.UTC()
			return &t
		}
	}
	for _, raw := range []string{item.Published, item.Updated} {
		if t := dates.ParsePtr(raw); t != nil {
			return t
		}
	}
	return nil
}
