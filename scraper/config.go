// Package scraper holds the per-source extraction rules: which selectors to
// try, in which order, and how many items to take. Rules are plain data so a
// source whose layout changed only needs a new rule set.
package scraper

// Default limits.
const (
	DefaultListingMaxItems      = 5
	DefaultListingDescLimit     = 200
	DefaultCrawlMaxItems        = 15
	DefaultCrawlDescLimit       = 300
	DefaultGuestMarker          = "avec"
	DefaultFeedDescLimit        = 300
	DefaultCrawlDelayMillis     = 500
	DefaultTitleSelector        = "h1"
	DefaultLinkSelector         = "a"
	DefaultListingTitleSelector = "h2, h3, .title"
)

// FeedConfig drives the RSS/Atom adapter.
type FeedConfig struct {
	// GuestMarkers are the words introducing guest names ("avec", "with").
	GuestMarkers []string `yaml:"guest_markers,omitempty"`
	// MaxItems caps how many feed entries are kept. Zero keeps all.
	MaxItems  int `yaml:"max_items,omitempty"`
	DescLimit int `yaml:"desc_limit,omitempty"`
}

// ListingConfig drives adapters that read records straight off a catalog or
// news page.
type ListingConfig struct {
	// ItemSelectors are tried in order; the first one matching any element
	// wins.
	ItemSelectors        []string `yaml:"item_selectors"`
	TitleSelectors       []string `yaml:"title_selectors,omitempty"`
	DescriptionSelectors []string `yaml:"description_selectors,omitempty"`
	LinkSelector         string   `yaml:"link_selector,omitempty"`
	MaxItems             int      `yaml:"max_items,omitempty"`
	DescLimit            int      `yaml:"desc_limit,omitempty"`
}

// CrawlConfig drives adapters that collect item links from a listing page and
// then fetch every item page.
type CrawlConfig struct {
	// ListingURL is the page links are collected from. Defaults to the
	// source URL.
	ListingURL string `yaml:"listing_url,omitempty"`
	// LinkSelectors are tried in order; the first selector yielding links
	// wins.
	LinkSelectors []string `yaml:"link_selectors"`
	// LinkContains keeps only links whose href contains this substring.
	LinkContains string `yaml:"link_contains,omitempty"`
	MaxItems     int    `yaml:"max_items,omitempty"`
	// DelayMillis spaces out item requests.
	DelayMillis int `yaml:"delay_ms,omitempty"`

	Item ItemConfig `yaml:"item"`
}

// ItemConfig describes how to read one item page.
type ItemConfig struct {
	TitleSelectors       []string `yaml:"title_selectors,omitempty"`
	AuthorSelectors      []string `yaml:"author_selectors,omitempty"`
	DescriptionSelectors []string `yaml:"description_selectors,omitempty"`
	// DateSelectors are read from their datetime attribute, then their text.
	DateSelectors []string `yaml:"date_selectors,omitempty"`
	// DateRowSelectors are scanned for a label (see DateLabels); the date is
	// read from the following sibling, then from the row itself.
	DateRowSelectors []string `yaml:"date_row_selectors,omitempty"`
	DateLabels       []string `yaml:"date_labels,omitempty"`
	// ScanBodyForDate falls back to the first date found anywhere on the page.
	ScanBodyForDate bool `yaml:"scan_body_for_date,omitempty"`
	// GuestSelectors and GuestMarkers extract podcast guests; the markers
	// are searched in GuestTextSelectors when no guest element is found.
	GuestSelectors     []string `yaml:"guest_selectors,omitempty"`
	GuestTextSelectors []string `yaml:"guest_text_selectors,omitempty"`
	GuestMarkers       []string `yaml:"guest_markers,omitempty"`
	// PreferLinkContains replaces the item URL with the first outbound link
	// whose href contains this substring (e.g. "spotify").
	PreferLinkContains string `yaml:"prefer_link_contains,omitempty"`
	DescLimit          int    `yaml:"desc_limit,omitempty"`
}

// NewListingConfig creates a listing configuration with default values.
func NewListingConfig(itemSelectors ...string) *ListingConfig {
	return &ListingConfig{
		ItemSelectors: itemSelectors,
		MaxItems:      DefaultListingMaxItems,
		DescLimit:     DefaultListingDescLimit,
	}
}

// NewCrawlConfig creates a crawl configuration with default values.
func NewCrawlConfig(linkSelectors ...string) *CrawlConfig {
	return &CrawlConfig{
		LinkSelectors: linkSelectors,
		MaxItems:      DefaultCrawlMaxItems,
		DelayMillis:   DefaultCrawlDelayMillis,
	}
}

// WithDefaults fills zero values.
func (c FeedConfig) WithDefaults() FeedConfig {
	if len(c.GuestMarkers) == 0 {
		c.GuestMarkers = []string{DefaultGuestMarker}
	}
	if c.DescLimit <= 0 {
		c.DescLimit = DefaultFeedDescLimit
	}
	return c
}

// WithDefaults fills zero values.
func (c ListingConfig) WithDefaults() ListingConfig {
	if len(c.TitleSelectors) == 0 {
		c.TitleSelectors = []string{DefaultListingTitleSelector}
	}
	if len(c.DescriptionSelectors) == 0 {
		c.DescriptionSelectors = []string{"p, .description"}
	}
	if c.LinkSelector == "" {
		c.LinkSelector = DefaultLinkSelector
	}
	if c.MaxItems <= 0 {
		c.MaxItems = DefaultListingMaxItems
	}
	if c.DescLimit <= 0 {
		c.DescLimit = DefaultListingDescLimit
	}
	return c
}

// WithDefaults fills zero values. A negative delay disables pacing.
func (c CrawlConfig) WithDefaults() CrawlConfig {
	if c.MaxItems <= 0 {
		c.MaxItems = DefaultCrawlMaxItems
	}
	if c.DelayMillis == 0 {
		c.DelayMillis = DefaultCrawlDelayMillis
	}
	if len(c.Item.TitleSelectors) == 0 {
		c.Item.TitleSelectors = []string{DefaultTitleSelector}
	}
	if c.Item.DescLimit <= 0 {
		c.Item.DescLimit = DefaultCrawlDescLimit
	}
	if len(c.Item.GuestMarkers) == 0 && (len(c.Item.GuestSelectors) > 0 || len(c.Item.GuestTextSelectors) > 0) {
		c.Item.GuestMarkers = []string{DefaultGuestMarker}
	}
	return c
}
