// Package seen remembers which records were already published so a run only
// forwards genuinely new ones.
package seen

import (
	"context"
	"fmt"
	"sort"

	"github.com/pevans/historybrief/logger"
	"github.com/pevans/historybrief/record"
)

// Set is a set of record fingerprints.
type Set map[string]struct{}

// NewSet creates a set holding fingerprints.
func NewSet(fingerprints ...string) Set {
	s := make(Set, len(fingerprints))
	for _, fp := range fingerprints {
		s.Add(fp)
	}
	return s
}

// Has reports whether fp is in the set.
func (s Set) Has(fp string) bool {
	_, ok := s[fp]
	return ok
}

// Add inserts fp. Empty fingerprints are ignored.
func (s Set) Add(fp string) {
	if fp != "" {
		s[fp] = struct{}{}
	}
}

// Len returns the number of fingerprints.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the fingerprints in lexical order, for stable output.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for fp := range s {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

// Store persists a Set between runs. A store with no prior state loads an
// empty set.
type Store interface {
	Load(ctx context.Context) (Set, error)
	Save(ctx context.Context, set Set) error
	Close() error
}

// Filter removes already-seen records from a run's candidates.
type Filter struct {
	store Store
	log   logger.Logger
}

// NewFilter creates a filter backed by store.
func NewFilter(store Store, log logger.Logger) *Filter {
	return &Filter{store: store, log: log}
}

// FilterNew returns the candidates whose fingerprint is not yet known, in
// input order. Duplicates within candidates collapse to their first
// occurrence. The extended set is saved once, before returning, so records
// count as seen whether or not they are later published.
func (f *Filter) FilterNew(ctx context.Context, candidates []record.Record) ([]record.Record, error) {
	set, err := f.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen fingerprints: %w", err)
	}
	known := set.Len()

	fresh := make([]record.Record, 0, len(candidates))
	for _, c := range candidates {
		fp := c.Fingerprint()
		if set.Has(fp) {
			continue
		}
		set.Add(fp)
		fresh = append(fresh, c)
	}

	if err := f.store.Save(ctx, set); err != nil {
		return nil, fmt.Errorf("failed to save seen fingerprints: %w", err)
	}

	f.log.Info("Filtered candidates",
		logger.Int("candidates", len(candidates)),
		logger.Int("new", len(fresh)),
		logger.Int("known", known),
	)
	return fresh, nil
}
