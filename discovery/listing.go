package discovery

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/pevans/historybrief/record"
	"github.com/pevans/historybrief/scraper"
	"github.com/pevans/historybrief/sources"
)

// ListingExtractor reads records directly off a catalog or news page.
type ListingExtractor struct {
	source   string
	kind     record.Type
	category string
	pageURL  string
	base     *url.URL
	config   scraper.ListingConfig
}

// NewListingExtractor creates the extractor for a listing source.
func NewListingExtractor(src sources.Source) (*ListingExtractor, error) {
	base, err := src.Origin()
	if err != nil {
		return nil, err
	}
	if src.Listing == nil {
		return nil, fmt.Errorf("%s: %w", src.Name, sources.ErrMissingRules)
	}

	return &ListingExtractor{
		source:   src.Name,
		kind:     src.Type,
		category: src.EffectiveCategory(),
		pageURL:  src.URL,
		base:     base,
		config:   src.Listing.WithDefaults(),
	}, nil
}

// Extract parses raw as HTML. The first item selector matching any element
// decides the candidates.
func (e *ListingExtractor) Extract(raw []byte) ([]record.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var items *goquery.Selection
	for _, selector := range e.config.ItemSelectors {
		if found := doc.Find(selector); found.Length() > 0 {
			items = found
			break
		}
	}
	if items == nil {
		return []record.Record{}, nil
	}

	records := []record.Record{}
	items.Each(func(_ int, item *goquery.Selection) {
		if r, ok := e.itemToRecord(item); ok {
			records = append(records, r)
		}
	})
	return records, nil
}

func (e *ListingExtractor) MaxItems() int {
	return e.config.MaxItems
}

func (e *ListingExtractor) itemToRecord(item *goquery.Selection) (record.Record, bool) {
	title := FirstText(item, e.config.TitleSelectors)
	if title == "" {
		return record.Record{}, false
	}

	href, ok := item.Find(e.config.LinkSelector).First().Attr("href")
	if !ok && goquery.NodeName(item) == "a" {
		href, _ = item.Attr("href")
	}
	link := resolveURL(e.base, href)
	if link == "" {
		link = e.pageURL
	}

	return record.Record{
		Title:       title,
		URL:         link,
		Description: record.Truncate(FirstText(item, e.config.DescriptionSelectors), e.config.DescLimit),
		Author:      placeholderAuthor(e.kind),
		Date:        DateChain(item, TimeElementDate),
		Source:      e.source,
		Type:        e.kind,
		Category:    e.category,
	}, true
}
