package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pevans/historybrief/fetch"
	"github.com/pevans/historybrief/logger"
	"github.com/pevans/historybrief/record"
	"github.com/pevans/historybrief/scraper"
	"github.com/pevans/historybrief/sources"
)

// CrawlAdapter collects item links from a listing page, then fetches every
// item page in sequence through its own pacer.
type CrawlAdapter struct {
	source  sources.Source
	config  scraper.CrawlConfig
	base    *url.URL
	client  *fetch.Client
	pacer   *fetch.Pacer
	items   *ItemExtractor
	log     logger.Logger
	now     func() time.Time
	listing string
}

// NewCrawlAdapter creates the crawl adapter for a source.
func NewCrawlAdapter(src sources.Source, client *fetch.Client, log logger.Logger) (*CrawlAdapter, error) {
	base, err := src.Origin()
	if err != nil {
		return nil, err
	}
	if src.Crawl == nil {
		return nil, fmt.Errorf("%s: %w", src.Name, sources.ErrMissingRules)
	}

	cfg := src.Crawl.WithDefaults()
	listing := cfg.ListingURL
	if listing == "" {
		listing = src.URL
	}

	return &CrawlAdapter{
		source:  src,
		config:  cfg,
		base:    base,
		client:  client,
		pacer:   fetch.NewPacer(time.Duration(cfg.DelayMillis) * time.Millisecond),
		items:   NewItemExtractor(src, base, cfg.Item),
		log:     log,
		now:     time.Now,
		listing: listing,
	}, nil
}

// Fetch crawls the source. A listing page failure is an error; item page
// failures are logged and skipped.
func (a *CrawlAdapter) Fetch(ctx context.Context) ([]record.Record, error) {
	doc, err := a.client.Document(ctx, a.listing)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	links := CollectLinks(doc.Selection, a.base, a.config)
	a.log.Debug("Collected item links", logger.Int("links", len(links)))

	records := make([]record.Record, 0, len(links))
	for _, link := range links {
		if err := a.pacer.Wait(ctx); err != nil {
			a.log.Warn("Crawl interrupted", logger.Error(err))
			break
		}

		page, err := a.client.Document(ctx, link)
		if err != nil {
			a.log.Warn("Failed to fetch item page", logger.String("url", link), logger.Error(err))
			continue
		}

		r, ok := a.items.ExtractItem(page.Selection, link)
		if !ok {
			a.log.Debug("Item page has no title", logger.String("url", link))
			continue
		}
		records = append(records, r)
	}

	return Admit(a.source, records, a.now()), nil
}

// CollectLinks returns up to cfg.MaxItems unique absolute item links. The
// first link selector yielding any link wins.
func CollectLinks(sel *goquery.Selection, base *url.URL, cfg scraper.CrawlConfig) []string {
	for _, selector := range cfg.LinkSelectors {
		seen := make(map[string]bool)
		links := []string{}

		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, ok := s.Attr("href")
			if !ok {
				return true
			}
			if cfg.LinkContains != "" && !strings.Contains(href, cfg.LinkContains) {
				return true
			}
			link := resolveURL(base, href)
			if link == "" || seen[link] {
				return true
			}
			seen[link] = true
			links = append(links, link)
			return cfg.MaxItems <= 0 || len(links) < cfg.MaxItems
		})

		if len(links) > 0 {
			return links
		}
	}
	return []string{}
}

// ItemExtractor reads one item page.
type ItemExtractor struct {
	source   string
	kind     record.Type
	category string
	base     *url.URL
	config   scraper.ItemConfig
	dates    []DateStrategy
}

// NewItemExtractor creates an item page extractor. The date chain is: time
// elements, configured date selectors, labelled rows, then the whole body
// when enabled.
func NewItemExtractor(src sources.Source, base *url.URL, cfg scraper.ItemConfig) *ItemExtractor {
	strategies := []DateStrategy{TimeElementDate}
	if len(cfg.DateSelectors) > 0 {
		strategies = append(strategies, SelectorDate(cfg.DateSelectors))
	}
	if len(cfg.DateRowSelectors) > 0 && len(cfg.DateLabels) > 0 {
		strategies = append(strategies, LabelledRowDate(cfg.DateRowSelectors, cfg.DateLabels))
	}
	if cfg.ScanBodyForDate {
		strategies = append(strategies, BodyDate)
	}

	return &ItemExtractor{
		source:   src.Name,
		kind:     src.Type,
		category: src.EffectiveCategory(),
		base:     base,
		config:   cfg,
		dates:    strategies,
	}
}

// ExtractItem builds the record of the page at pageURL. It reports false when
// the page has no title.
func (e *ItemExtractor) ExtractItem(page *goquery.Selection, pageURL string) (record.Record, bool) {
	title := FirstText(page, e.config.TitleSelectors)
	if title == "" {
		return record.Record{}, false
	}

	description := MetaDescription(page)
	if description == "" {
		description = FirstText(page, e.config.DescriptionSelectors)
	}

	link := pageURL
	if e.config.PreferLinkContains != "" {
		if preferred := e.preferredLink(page); preferred != "" {
			link = preferred
		}
	}

	return record.Record{
		Title:       title,
		URL:         link,
		Description: record.Truncate(description, e.config.DescLimit),
		Author:      e.author(page),
		Date:        DateChain(page, e.dates...),
		Source:      e.source,
		Type:        e.kind,
		Category:    e.category,
	}, true
}

// author reads guests when guest rules are configured, the author chain
// otherwise, and falls back to the type placeholder.
func (e *ItemExtractor) author(page *goquery.Selection) string {
	if len(e.config.GuestSelectors) > 0 || len(e.config.GuestTextSelectors) > 0 {
		if guests := ParseGuests(FirstText(page, e.config.GuestSelectors)); len(guests) > 0 {
			return strings.Join(guests, ", ")
		}
		body := FirstText(page, e.config.GuestTextSelectors)
		if guests := Guests("", body, e.config.GuestMarkers); len(guests) > 0 {
			return strings.Join(guests, ", ")
		}
		return placeholderAuthor(e.kind)
	}

	if text := FirstText(page, e.config.AuthorSelectors); text != "" {
		return text
	}
	return placeholderAuthor(e.kind)
}

func (e *ItemExtractor) preferredLink(page *goquery.Selection) string {
	var link string
	page.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, e.config.PreferLinkContains) {
			link = resolveURL(e.base, href)
		}
		return link == ""
	})
	return link
}
