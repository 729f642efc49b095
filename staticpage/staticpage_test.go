package staticpage

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/mfukuda/dealsheet/config"
	"github.com/mfukuda/dealsheet/scraper"
)

const listingHTML = `<html><body>
<div class="deals">
	<a href="/dp/B000000001">Copy Paper</a>
	<a href="/dp/B000000002?ref=grid">Stapler</a>
	<a href="/gp/product/B000000003">Desk Mat</a>
	<a href="/dp/B000123456X">Broken Link</a>
	<a href="/help/contact">Contact</a>
</div>
</body></html>`

const detailHTML = `<html><body>
<h1><span id="productTitle"> Copy Paper A4 </span></h1>
<span class="a-price a-text-price" data-a-strike="true"><span class="a-offscreen">¥1,000</span></span>
<div id="corePrice_feature_div"><span class="a-offscreen">¥800</span></div>
<ul><li data-minimum-quantity="5" data-numeric-value="800">5+</li></ul>
</body></html>`

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func newTestSurface(t *testing.T, transport *httpmock.MockTransport) *Surface {
	t.Helper()
	s, err := New("http://shop.test/deals", "test-agent", 5*time.Second, testLogger())
	if err != nil {
		t.Fatalf("new surface: %v", err)
	}
	s.SetTransport(transport)
	return s
}

func TestSurfaceHandlesDocumentOrder(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/deals", htmlResponder(listingHTML))

	s := newTestSurface(t, transport)
	handles, err := s.Handles(context.Background())
	if err != nil {
		t.Fatalf("handles: %v", err)
	}

	want := []string{
		"http://shop.test/dp/B000000001",
		"http://shop.test/dp/B000000002?ref=grid",
		"http://shop.test/gp/product/B000000003",
		"http://shop.test/dp/B000123456X",
	}
	if len(handles) != len(want) {
		t.Fatalf("handles = %v, want %d entries", handles, len(want))
	}
	for i, url := range want {
		if handles[i].URL != url {
			t.Fatalf("handles[%d] = %q, want %q", i, handles[i].URL, url)
		}
	}

	// Later passes serve the cached document without another fetch.
	if _, err := s.Handles(context.Background()); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if calls := transport.GetTotalCallCount(); calls != 1 {
		t.Fatalf("listing fetched %d times, want 1", calls)
	}
}

func TestSurfaceDetailLookups(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/dp/B000000001", htmlResponder(detailHTML))

	s := newTestSurface(t, transport)
	d, err := s.OpenDetail(context.Background(), scraper.Handle{URL: "http://shop.test/dp/B000000001"})
	if err != nil {
		t.Fatalf("open detail: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	if name, err := d.Text(ctx, "#productTitle"); err != nil || name != "Copy Paper A4" {
		t.Fatalf("Text(#productTitle) = %q, %v", name, err)
	}
	if qty, err := d.Attr(ctx, "li[data-minimum-quantity]", "data-minimum-quantity"); err != nil || qty != "5" {
		t.Fatalf("Attr(quantity) = %q, %v", qty, err)
	}
	if _, err := d.Text(ctx, "#missing"); err == nil {
		t.Fatalf("missing selector should be a miss")
	}
	if _, err := d.Attr(ctx, "#productTitle", "data-absent"); err == nil {
		t.Fatalf("missing attribute should be a miss")
	}
}

func TestSurfaceDetailFetchFailure(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/dp/B000000001",
		httpmock.NewStringResponder(http.StatusForbidden, "blocked"))

	s := newTestSurface(t, transport)
	_, err := s.OpenDetail(context.Background(), scraper.Handle{URL: "http://shop.test/dp/B000000001"})
	if err == nil {
		t.Fatalf("expected error for forbidden detail page")
	}
}

// Full traversal over the mocked site: four product links, one with a
// malformed identifier, all details served from one fixture.
func TestTraversalOverStaticSurface(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://shop.test/deals", htmlResponder(listingHTML))
	for _, url := range []string{
		"http://shop.test/dp/B000000001",
		"http://shop.test/dp/B000000002?ref=grid",
		"http://shop.test/gp/product/B000000003",
	} {
		transport.RegisterResponder("GET", url, htmlResponder(detailHTML))
	}

	s := newTestSurface(t, transport)

	cfg := config.DefaultConfig()
	cfg.ListingURL = "http://shop.test/deals"
	cfg.Backend = "static"
	cfg.ItemDelay = 0
	cfg.SettleDelay = 0

	tr := scraper.NewTraverser(cfg, s, s,
		scraper.NewExtractor(scraper.DefaultStrategies(), testLogger()),
		nil, testLogger())

	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(result.Records))
	}
	if result.Stats.SkippedInvalid != 1 {
		t.Fatalf("skipped invalid = %d, want 1", result.Stats.SkippedInvalid)
	}
	rec := result.Records[0]
	if rec.ASIN != "B000000001" || rec.Name != "Copy Paper A4" {
		t.Fatalf("first record = %+v", rec)
	}
	if rec.DiscountAmount == nil || *rec.DiscountAmount != 200 {
		t.Fatalf("discount amount = %v", rec.DiscountAmount)
	}
	if result.Stats.EmptyPasses != cfg.EmptyPassLimit {
		t.Fatalf("empty passes = %d, want %d", result.Stats.EmptyPasses, cfg.EmptyPassLimit)
	}
}
