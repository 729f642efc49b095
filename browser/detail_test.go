package browser

import (
	"strings"
	"testing"
)

// Selectors carry quotes and brackets; they must arrive in the page as a
// properly escaped JS string literal.
func TestLookupJSEscaping(t *testing.T) {
	js := textJS(`span.a-price[data-a-strike='true'] .a-offscreen`)
	if !strings.Contains(js, `"span.a-price[data-a-strike='true'] .a-offscreen"`) {
		t.Fatalf("selector not quoted into JS:\n%s", js)
	}

	js = attrJS(`li[data-minimum-quantity]`, "data-numeric-value")
	if !strings.Contains(js, `"li[data-minimum-quantity]"`) || !strings.Contains(js, `"data-numeric-value"`) {
		t.Fatalf("attr lookup not quoted into JS:\n%s", js)
	}
}

func TestLookupJSQuoteInjection(t *testing.T) {
	js := textJS(`a[title="x"] `)
	if strings.Contains(js, `querySelector(a[title`) {
		t.Fatalf("selector interpolated unquoted:\n%s", js)
	}
	// The embedded double quotes must be escaped, not terminate the literal.
	if !strings.Contains(js, `\"x\"`) {
		t.Fatalf("quotes not escaped:\n%s", js)
	}
}

func TestBackoffGrowth(t *testing.T) {
	b := &Browser{opts: DefaultOptions()}

	if b.backoff(2) != 2*b.opts.RetryBackoff {
		t.Fatalf("backoff(2) = %v", b.backoff(2))
	}
	if b.backoff(3) != 4*b.opts.RetryBackoff {
		t.Fatalf("backoff(3) = %v", b.backoff(3))
	}
}
