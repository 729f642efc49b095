// Package scraper implements the scroll-and-scrape traversal: incremental
// discovery of product handles on a lazily loaded listing, per-item field
// extraction through short-lived detail sessions, dedup across scroll
// passes, and a stability-based termination policy.
package scraper

import "context"

// Handle is an opaque reference to a discovered item. The URL is enough to
// derive the product identifier and to open the item's detail surface.
type Handle struct {
	URL string
}

// ListingSurface is the scrollable view presenting product summaries. It is
// a capability, not a concrete page: implementations may drive a headless
// browser or parse a static document.
type ListingSurface interface {
	// Handles enumerates the currently visible item handles in document
	// order. Repeated calls may return overlapping sets as more content
	// materialises.
	Handles(ctx context.Context) ([]Handle, error)

	// Scroll advances the listing's scroll position by the given number of
	// pixels. Implementations without a scroll position treat it as a no-op.
	Scroll(ctx context.Context, pixels int) error
}

// DetailSurface is a per-product page opened for one item. Exactly one is
// open at a time; Close must be called before the next item begins.
type DetailSurface interface {
	// Text returns the trimmed text content of the first element matching
	// the selector. A non-matching selector is an error so strategy chains
	// can fall through to the next candidate.
	Text(ctx context.Context, selector string) (string, error)

	// Attr returns the named attribute of the first element matching the
	// selector.
	Attr(ctx context.Context, selector, name string) (string, error)

	Close() error
}

// DetailOpener opens an isolated detail session for a single handle.
type DetailOpener interface {
	OpenDetail(ctx context.Context, h Handle) (DetailSurface, error)
}
