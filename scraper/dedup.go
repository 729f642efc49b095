package scraper

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// invalidCacheSize bounds the suppression window for malformed handle URLs.
// Eviction only risks counting a long-gone URL twice, so a small cache is
// enough.
const invalidCacheSize = 256

// DedupTracker records which product identifiers have been processed during
// one traversal. The visited set only grows and lives for exactly one run;
// the traverser owns its tracker so repeated runs in one process never share
// state.
type DedupTracker struct {
	seen    map[string]struct{}
	invalid *lru.Cache[string, struct{}]
	skipped int
}

// NewDedupTracker returns an empty tracker.
func NewDedupTracker() *DedupTracker {
	cache, err := lru.New[string, struct{}](invalidCacheSize)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &DedupTracker{
		seen:    make(map[string]struct{}),
		invalid: cache,
	}
}

// IsNew reports whether the identifier has not been marked yet.
func (d *DedupTracker) IsNew(asin string) bool {
	_, ok := d.seen[asin]
	return !ok
}

// Mark records the identifier as processed for the rest of the run.
func (d *DedupTracker) Mark(asin string) {
	d.seen[asin] = struct{}{}
}

// NoteInvalid counts a handle URL that no identifier could be parsed from
// and reports whether it was newly counted. The same URL reappears on every
// scroll pass, so each one is only counted once within the suppression
// window.
func (d *DedupTracker) NoteInvalid(url string) bool {
	if _, ok := d.invalid.Get(url); ok {
		return false
	}
	d.invalid.Add(url, struct{}{})
	d.skipped++
	return true
}

// SkippedInvalid returns how many distinct malformed handles were excluded.
func (d *DedupTracker) SkippedInvalid() int {
	return d.skipped
}

// Len returns the number of identifiers marked so far.
func (d *DedupTracker) Len() int {
	return len(d.seen)
}
