package sources

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/pevans/historybrief/dates"
	"github.com/pevans/historybrief/record"
	"github.com/pevans/historybrief/scraper"
)

// Custom errors for source validation
var (
	ErrMissingName       = errors.New("source name is required")
	ErrInvalidURL        = errors.New("source url must be an absolute http(s) URL")
	ErrInvalidType       = errors.New("source type must be publisher, podcast, or institution")
	ErrInvalidAdapter    = errors.New("source adapter must be feed, listing, or crawl")
	ErrInvalidThreshold  = errors.New("source threshold must set at most one of months, weeks, days")
	ErrInvalidDatePolicy = errors.New("source date_policy must be drop, keep, or today")
	ErrMissingRules      = errors.New("source is missing the extraction rules for its adapter")
	ErrDuplicateName     = errors.New("source name is used more than once")
)

// AdapterKind selects the adapter family that handles a source.
type AdapterKind string

const (
	AdapterFeed    AdapterKind = "feed"
	AdapterListing AdapterKind = "listing"
	AdapterCrawl   AdapterKind = "crawl"
)

// DatePolicy decides what happens to a record whose date could not be
// resolved.
type DatePolicy string

const (
	// DateDrop discards undated records.
	DateDrop DatePolicy = "drop"
	// DateKeep keeps undated records without a date.
	DateKeep DatePolicy = "keep"
	// DateToday keeps undated records stamped with the run time.
	DateToday DatePolicy = "today"
)

// Source describes one external source. Descriptors are loaded once at
// startup and never mutated.
type Source struct {
	Name       string      `yaml:"name" json:"name"`
	URL        string      `yaml:"url" json:"url"`
	FeedURL    string      `yaml:"feed_url,omitempty" json:"feed_url,omitempty"`
	Type       record.Type `yaml:"type" json:"type"`
	Category   string      `yaml:"category,omitempty" json:"category,omitempty"`
	Adapter    AdapterKind `yaml:"adapter" json:"adapter"`
	Threshold  Threshold   `yaml:"threshold,omitempty" json:"threshold"`
	DatePolicy DatePolicy  `yaml:"date_policy,omitempty" json:"date_policy,omitempty"`
	Disabled   bool        `yaml:"disabled,omitempty" json:"disabled,omitempty"`

	Feed    *scraper.FeedConfig    `yaml:"feed,omitempty" json:"-"`
	Listing *scraper.ListingConfig `yaml:"listing,omitempty" json:"-"`
	Crawl   *scraper.CrawlConfig   `yaml:"crawl,omitempty" json:"-"`
}

// Threshold is the per-source recency cutoff. At most one unit is set; the
// zero Threshold admits every dated record.
type Threshold struct {
	Months int `yaml:"months,omitempty" json:"months,omitempty"`
	Weeks  int `yaml:"weeks,omitempty" json:"weeks,omitempty"`
	Days   int `yaml:"days,omitempty" json:"days,omitempty"`
}

// IsZero reports whether no cutoff is configured.
func (t Threshold) IsZero() bool {
	return t.Months == 0 && t.Weeks == 0 && t.Days == 0
}

// Admits reports whether a record dated d passes the cutoff at now. The zero
// time never passes; undated records are handled by the DatePolicy.
func (t Threshold) Admits(d time.Time, now time.Time) bool {
	switch {
	case d.IsZero():
		return false
	case t.Months > 0:
		return dates.WithinMonthsAt(d, t.Months, now)
	case t.Weeks > 0:
		return dates.WithinWeeksAt(d, t.Weeks, now)
	case t.Days > 0:
		return dates.WithinDaysAt(d, t.Days, now)
	}
	return true
}

func (t Threshold) String() string {
	switch {
	case t.Months > 0:
		return fmt.Sprintf("%d months", t.Months)
	case t.Weeks > 0:
		return fmt.Sprintf("%d weeks", t.Weeks)
	case t.Days > 0:
		return fmt.Sprintf("%d days", t.Days)
	}
	return "none"
}

func (t Threshold) validate() error {
	set := 0
	for _, v := range []int{t.Months, t.Weeks, t.Days} {
		if v < 0 {
			return ErrInvalidThreshold
		}
		if v > 0 {
			set++
		}
	}
	if set > 1 {
		return ErrInvalidThreshold
	}
	return nil
}

// Origin returns the scheme and host of the source URL, the base used to
// resolve relative links.
func (s Source) Origin() (*url.URL, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, nil
}

// EffectiveCategory returns the configured category or the default label for
// the source type.
func (s Source) EffectiveCategory() string {
	if s.Category != "" {
		return s.Category
	}
	return DefaultCategory(s.Type)
}

// EffectiveDatePolicy returns the configured policy or the adapter default:
// listing pages stamp undated records with today, feeds and crawls drop them.
func (s Source) EffectiveDatePolicy() DatePolicy {
	if s.DatePolicy != "" {
		return s.DatePolicy
	}
	if s.Adapter == AdapterListing {
		return DateToday
	}
	return DateDrop
}

// DefaultCategory returns the display category of a record type.
func DefaultCategory(t record.Type) string {
	switch t {
	case record.TypePublisher:
		return "Maison d'édition"
	case record.TypePodcast:
		return "Podcast"
	case record.TypeInstitution:
		return "Établissement"
	}
	return ""
}

// Validate checks a single descriptor.
func (s Source) Validate() error {
	if s.Name == "" {
		return ErrMissingName
	}
	if _, err := s.Origin(); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	if !s.Type.Valid() {
		return fmt.Errorf("%s: %w", s.Name, ErrInvalidType)
	}
	if err := s.Threshold.validate(); err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	switch s.DatePolicy {
	case "", DateDrop, DateKeep, DateToday:
	default:
		return fmt.Errorf("%s: %w", s.Name, ErrInvalidDatePolicy)
	}

	switch s.Adapter {
	case AdapterFeed:
		if s.FeedURL == "" {
			return fmt.Errorf("%s: %w (feed_url)", s.Name, ErrMissingRules)
		}
	case AdapterListing:
		if s.Listing == nil || len(s.Listing.ItemSelectors) == 0 {
			return fmt.Errorf("%s: %w (listing.item_selectors)", s.Name, ErrMissingRules)
		}
	case AdapterCrawl:
		if s.Crawl == nil || len(s.Crawl.LinkSelectors) == 0 {
			return fmt.Errorf("%s: %w (crawl.link_selectors)", s.Name, ErrMissingRules)
		}
	default:
		return fmt.Errorf("%s: %w", s.Name, ErrInvalidAdapter)
	}
	return nil
}

// Enabled returns the sources not marked disabled, preserving order.
func Enabled(list []Source) []Source {
	enabled := make([]Source, 0, len(list))
	for _, s := range list {
		if !s.Disabled {
			enabled = append(enabled, s)
		}
	}
	return enabled
}
