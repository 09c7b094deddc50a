// Package dates normalizes the heterogeneous date strings found on publisher
// and podcast pages (numeric, French textual, bare years, ISO) and provides
// the recency predicates used to gate records per source.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	numericPattern   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	dayMonthPattern  = regexp.MustCompile(`(\d{1,2})(?:er)?\s+(\p{L}+)\.?\s+(\d{4})`)
	monthYearPattern = regexp.MustCompile(`(\p{L}+)\.?\s+(\d{4})`)
	yearPattern      = regexp.MustCompile(`^(\d{4})$`)
	isoDatePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// frenchMonths maps full and abbreviated French month names, accented and
// unaccented, to their month.
var frenchMonths = map[string]time.Month{
	"janvier": time.January, "janv": time.January, "jan": time.January,
	"février": time.February, "fevrier": time.February,
	"févr": time.February, "fevr": time.February,
	"fév": time.February, "fev": time.February,
	"mars": time.March, "mar": time.March,
	"avril": time.April, "avr": time.April,
	"mai":  time.May,
	"juin": time.June, "jun": time.June,
	"juillet": time.July, "juil": time.July,
	"août": time.August, "aout": time.August,
	"aoû": time.August, "aou": time.August,
	"septembre": time.September, "sept": time.September, "sep": time.September,
	"octobre": time.October, "oct": time.October,
	"novembre": time.November, "nov": time.November,
	"décembre": time.December, "decembre": time.December,
	"déc": time.December, "dec": time.December,
}

// isoLayouts are tried, in order, against the whole input once none of the
// French patterns matched.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// Parse extracts a date from text. Patterns are tried in priority order:
// DD/MM/YYYY, "DD <mois> YYYY", "<mois> YYYY" (first of the month), a bare
// four-digit year (January 1st), then ISO and RFC layouts. Textual and
// numeric dates are returned at midnight UTC.
func Parse(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	lower := strings.ToLower(text)

	if t, ok := parseNumeric(lower); ok {
		return t, true
	}
	if t, ok := parseDayMonthYear(lower); ok {
		return t, true
	}
	if t, ok := parseMonthYear(lower); ok {
		return t, true
	}
	if m := yearPattern.FindStringSubmatch(lower); m != nil {
		year, _ := strconv.Atoi(m[1])
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}
	return parseISO(text)
}

// ParsePtr is Parse for optional record fields: it returns nil when nothing
// could be parsed.
func ParsePtr(text string) *time.Time {
	t, ok := Parse(text)
	if !ok {
		return nil
	}
	return &t
}

func parseNumeric(text string) (time.Time, bool) {
	for _, m := range numericPattern.FindAllStringSubmatch(text, -1) {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(year, time.Month(month), day); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDayMonthYear(text string) (time.Time, bool) {
	for _, m := range dayMonthPattern.FindAllStringSubmatch(text, -1) {
		month, ok := LookupMonth(m[2])
		if !ok {
			continue
		}
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(year, month, day); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseMonthYear(text string) (time.Time, bool) {
	for _, m := range monthYearPattern.FindAllStringSubmatch(text, -1) {
		month, ok := LookupMonth(m[1])
		if !ok {
			continue
		}
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func parseISO(text string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}
	if s := isoDatePattern.FindString(text); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// calendarDate builds a UTC date and rejects values time.Date would silently
// normalize, such as 31/02.
func calendarDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// LookupMonth resolves a French month name. Case, a trailing dot and
// diacritics are ignored.
func LookupMonth(name string) (time.Month, bool) {
	name = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
	if m, ok := frenchMonths[name]; ok {
		return m, true
	}
	m, ok := frenchMonths[foldAccents(name)]
	return m, ok
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
