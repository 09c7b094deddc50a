package record

import (
	"crypto/md5"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// Type is the coarse category of a record. It drives how the sink presents
// it.
type Type string

const (
	TypePublisher   Type = "publisher"
	TypePodcast     Type = "podcast"
	TypeInstitution Type = "institution"
)

// Valid reports whether t is one of the known record types.
func (t Type) Valid() bool {
	switch t {
	case TypePublisher, TypePodcast, TypeInstitution:
		return true
	}
	return false
}

// Placeholders used when an adapter cannot resolve an author.
const (
	UnknownAuthor = "Auteur inconnu"
	UnknownGuests = "Invités non spécifiés"
)

// Record is a normalized candidate item produced by a source adapter before
// deduplication.
type Record struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Author      string     `json:"author,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Source      string     `json:"source"`
	Type        Type       `json:"type"`
	Category    string     `json:"category,omitempty"`
}

// Fingerprint returns the deduplication key of r. Only the title, URL and
// source participate, so a re-scraped item whose description or date changed
// still maps to the same fingerprint. The hex MD5 of "title-url-source" keeps
// compatibility with existing seen files.
func Fingerprint(r Record) string {
	sum := md5.Sum([]byte(r.Title + "-" + r.URL + "-" + r.Source))
	return hex.EncodeToString(sum[:])
}

// Fingerprint is a convenience wrapper around the package-level Fingerprint.
func (r Record) Fingerprint() string {
	return Fingerprint(r)
}

// Truncate returns at most n runes of s. It never splits a multi-byte
// character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
