package browser

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chromedp/chromedp"

	"github.com/mfukuda/dealsheet/scraper"
)

// handlesJS collects product link hrefs in document order. Both product URL
// shapes are matched; the traverser filters out anything whose identifier
// does not parse.
const handlesJS = `Array.from(
	document.querySelectorAll('a[href*="/dp/"], a[href*="/gp/product/"]')
).map(a => a.href)`

// Listing is the scrollable product listing, backed by the browser's
// primary tab. It implements both scraper.ListingSurface and
// scraper.DetailOpener.
type Listing struct {
	b *Browser
}

// OpenListing navigates the primary tab to the listing URL.
func (b *Browser) OpenListing(ctx context.Context, url string) (*Listing, error) {
	if err := b.navigate(ctx, b.tabCtx, url); err != nil {
		return nil, fmt.Errorf("open listing: %w", err)
	}
	return &Listing{b: b}, nil
}

// Handles returns the currently visible product handles in document order.
func (l *Listing) Handles(ctx context.Context) ([]scraper.Handle, error) {
	runCtx, cancel := l.b.opContext(ctx, l.b.tabCtx)
	defer cancel()

	var hrefs []string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(handlesJS, &hrefs)); err != nil {
		return nil, fmt.Errorf("collect handles: %w", err)
	}

	handles := make([]scraper.Handle, 0, len(hrefs))
	for _, href := range hrefs {
		handles = append(handles, scraper.Handle{URL: href})
	}
	return handles, nil
}

// Scroll advances the listing's scroll position so lazily loaded content
// can materialise.
func (l *Listing) Scroll(ctx context.Context, pixels int) error {
	runCtx, cancel := l.b.opContext(ctx, l.b.tabCtx)
	defer cancel()

	js := fmt.Sprintf("window.scrollBy(0, %s)", strconv.Itoa(pixels))
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// OpenDetail opens the handle's product page in a fresh tab. The returned
// surface must be closed before the next item is processed.
func (l *Listing) OpenDetail(ctx context.Context, h scraper.Handle) (scraper.DetailSurface, error) {
	tabCtx, cancelTab := chromedp.NewContext(l.b.tabCtx)
	if err := l.b.navigate(ctx, tabCtx, h.URL); err != nil {
		cancelTab()
		return nil, scraper.ErrNavigation{Err: err}
	}
	return &Detail{b: l.b, tabCtx: tabCtx, cancel: cancelTab}, nil
}
