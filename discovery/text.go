package discovery

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pevans/historybrief/dates"
	"github.com/pevans/historybrief/record"
)

// DateStrategy tries to read a date from a page or page fragment.
type DateStrategy func(sel *goquery.Selection) (time.Time, bool)

// FirstText returns the whitespace-normalized text of the first element, for
// the first selector in order, whose text is non-empty.
func FirstText(sel *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		var text string
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text = cleanText(s.Text())
			return text == ""
		})
		if text != "" {
			return text
		}
	}
	return ""
}

// DateChain evaluates strategies in order and returns the first date found,
// or nil.
func DateChain(sel *goquery.Selection, strategies ...DateStrategy) *time.Time {
	for _, strategy := range strategies {
		if t, ok := strategy(sel); ok {
			return &t
		}
	}
	return nil
}

// TimeElementDate reads the datetime attribute of the first time element.
func TimeElementDate(sel *goquery.Selection) (time.Time, bool) {
	var found time.Time
	var ok bool
	sel.Find("time[datetime]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		attr, _ := s.Attr("datetime")
		found, ok = dates.Parse(attr)
		return !ok
	})
	return found, ok
}

// SelectorDate reads elements matching selectors, datetime attribute first,
// then text.
func SelectorDate(selectors []string) DateStrategy {
	return func(sel *goquery.Selection) (time.Time, bool) {
		for _, selector := range selectors {
			var found time.Time
			var ok bool
			sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if attr, exists := s.Attr("datetime"); exists {
					if found, ok = dates.Parse(attr); ok {
						return false
					}
				}
				found, ok = dates.Parse(cleanText(s.Text()))
				return !ok
			})
			if ok {
				return found, true
			}
		}
		return time.Time{}, false
	}
}

// LabelledRowDate finds a row whose text mentions one of labels (e.g.
// "parution") and reads the date from the following sibling, then the row.
func LabelledRowDate(rowSelectors, labels []string) DateStrategy {
	return func(sel *goquery.Selection) (time.Time, bool) {
		for _, selector := range rowSelectors {
			var found time.Time
			var ok bool
			sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text := cleanText(s.Text())
				if !containsAnyFold(text, labels) {
					return true
				}
				if next := cleanText(s.Next().Text()); next != "" {
					if found, ok = dates.Parse(next); ok {
						return false
					}
				}
				found, ok = dates.Parse(text)
				return !ok
			})
			if ok {
				return found, true
			}
		}
		return time.Time{}, false
	}
}

// BodyDate scans the whole body text.
func BodyDate(sel *goquery.Selection) (time.Time, bool) {
	body := sel.Find("body")
	if body.Length() == 0 {
		body = sel
	}
	return dates.Parse(cleanText(body.Text()))
}

// MetaDescription returns the description meta tag, then og:description.
func MetaDescription(sel *goquery.Selection) string {
	for _, selector := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if content, ok := sel.Find(selector).First().Attr("content"); ok {
			if text := cleanText(content); text != "" {
				return text
			}
		}
	}
	return ""
}

// guestSplitter separates names in a captured guest list.
var guestSplitter = regexp.MustCompile(`\s*,\s*|\s+et\s+|\s+and\s+`)

// ParseGuests splits a guest list on commas, " et " and " and ".
func ParseGuests(text string) []string {
	guests := []string{}
	for _, part := range guestSplitter.Split(text, -1) {
		part = strings.Trim(cleanText(part), " ;")
		if part != "" {
			guests = append(guests, part)
		}
	}
	return guests
}

// guestPatterns compiles the title and snippet patterns for the markers. The
// title capture stops at a dash or colon, the snippet capture at sentence
// punctuation.
func guestPatterns(markers []string) (title, snippet *regexp.Regexp) {
	if len(markers) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	alt := strings.Join(quoted, "|")
	title = regexp.MustCompile(`(?i)\b(?:` + alt + `)\s+([^-:]+)`)
	snippet = regexp.MustCompile(`(?i)\b(?:` + alt + `)\s+([^.!?]+)`)
	return title, snippet
}

// Guests extracts guest names from a title, then from a text snippet, using
// the marker words that introduce them ("avec", "with").
func Guests(title, snippet string, markers []string) []string {
	titleRe, snippetRe := guestPatterns(markers)
	if titleRe == nil {
		return []string{}
	}
	if m := titleRe.FindStringSubmatch(title); m != nil {
		if guests := ParseGuests(m[1]); len(guests) > 0 {
			return guests
		}
	}
	if m := snippetRe.FindStringSubmatch(snippet); m != nil {
		return ParseGuests(m[1])
	}
	return []string{}
}

// placeholderAuthor is used when no author or guest could be read.
func placeholderAuthor(t record.Type) string {
	switch t {
	case record.TypePublisher:
		return record.UnknownAuthor
	case record.TypePodcast:
		return record.UnknownGuests
	}
	return ""
}

// resolveURL makes href absolute against base. Empty and non-navigable hrefs
// return "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if !u.IsAbs() {
			return ""
		}
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// stripHTML reduces an HTML fragment to normalized text.
func stripHTML(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return cleanText(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return cleanText(fragment)
	}
	return cleanText(doc.Text())
}

// cleanText collapses runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAnyFold(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
