// Package staticpage serves server-rendered listings without a browser. The
// whole document is visible at once, so discovery yields everything on the
// first pass and the traversal ends at the empty-pass threshold; Scroll is a
// no-op.
package staticpage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/mfukuda/dealsheet/scraper"
)

// Surface fetches a listing page over plain HTTP and exposes its product
// links as handles. It implements scraper.ListingSurface and
// scraper.DetailOpener.
type Surface struct {
	collector  *colly.Collector
	listingURL string
	logger     *slog.Logger

	fetched bool
	handles []scraper.Handle
}

// New builds a surface for the listing URL.
func New(listingURL, userAgent string, timeout time.Duration, logger *slog.Logger) (*Surface, error) {
	parsed, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("listing url must include a host")
	}
	if logger == nil {
		logger = slog.Default()
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(userAgent),
	)
	collector.SetRequestTimeout(timeout)
	collector.IgnoreRobotsTxt = true

	return &Surface{
		collector:  collector,
		listingURL: listingURL,
		logger:     logger,
	}, nil
}

// SetTransport swaps the underlying HTTP transport; tests inject a mock.
func (s *Surface) SetTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// Handles fetches the listing on the first call and returns its product
// links in document order. The document never changes afterwards, so later
// passes return the same set and the traversal terminates on the empty-pass
// threshold.
func (s *Surface) Handles(ctx context.Context) ([]scraper.Handle, error) {
	if s.fetched {
		return s.handles, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := s.collector.Clone()
	var handles []scraper.Handle
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if !strings.Contains(href, "/dp/") && !strings.Contains(href, "/gp/product/") {
			return
		}
		handles = append(handles, scraper.Handle{URL: e.Request.AbsoluteURL(href)})
	})

	if err := c.Visit(s.listingURL); err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	c.Wait()

	s.fetched = true
	s.handles = handles
	s.logger.Debug("static listing fetched", slog.Int("handles", len(handles)))
	return s.handles, nil
}

// Scroll is a no-op: a static document has no scroll position to advance.
func (s *Surface) Scroll(context.Context, int) error {
	return nil
}

// OpenDetail fetches the handle's product page and wraps it for selector
// lookups.
func (s *Surface) OpenDetail(ctx context.Context, h scraper.Handle) (scraper.DetailSurface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := s.collector.Clone()
	var doc *goquery.Document
	var parseErr error
	c.OnResponse(func(r *colly.Response) {
		doc, parseErr = goquery.NewDocumentFromReader(strings.NewReader(string(r.Body)))
	})

	if err := c.Visit(h.URL); err != nil {
		return nil, scraper.ErrNavigation{Err: fmt.Errorf("fetch detail: %w", err)}
	}
	c.Wait()

	if parseErr != nil {
		return nil, scraper.ErrNavigation{Err: fmt.Errorf("parse detail: %w", parseErr)}
	}
	if doc == nil {
		return nil, scraper.ErrNavigation{Err: fmt.Errorf("no response for %s", h.URL)}
	}
	return &detail{doc: doc}, nil
}

// detail wraps a parsed document. Close has nothing to release; the
// response body was consumed during the fetch.
type detail struct {
	doc *goquery.Document
}

func (d *detail) Text(_ context.Context, selector string) (string, error) {
	sel := d.doc.Find(selector)
	if sel.Length() == 0 {
		return "", fmt.Errorf("no element matches %q", selector)
	}
	return strings.TrimSpace(sel.First().Text()), nil
}

func (d *detail) Attr(_ context.Context, selector, name string) (string, error) {
	sel := d.doc.Find(selector)
	if sel.Length() == 0 {
		return "", fmt.Errorf("no element matches %q", selector)
	}
	value, ok := sel.First().Attr(name)
	if !ok {
		return "", fmt.Errorf("element %q has no attribute %q", selector, name)
	}
	return value, nil
}

func (d *detail) Close() error {
	return nil
}
