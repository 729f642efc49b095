package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/chromedp/chromedp"
)

// errNoMatch reports a selector with no matching element, letting extraction
// strategy chains fall through to the next candidate.
var errNoMatch = errors.New("no element matches selector")

// Detail is one product page in its own tab.
type Detail struct {
	b      *Browser
	tabCtx context.Context
	cancel context.CancelFunc
}

type lookupResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

// textJS reads the text content of the first element matching the selector;
// attrJS reads a named attribute. Both distinguish "no element" from an
// empty value so missing selectors can be reported as misses.
func textJS(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	return el ? {found: true, value: el.textContent} : {found: false, value: ''};
})()`, strconv.Quote(selector))
}

func attrJS(selector, name string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return {found: false, value: ''};
	const v = el.getAttribute(%s);
	return v === null ? {found: false, value: ''} : {found: true, value: v};
})()`, strconv.Quote(selector), strconv.Quote(name))
}

// Text returns the text content of the first element matching the selector.
func (d *Detail) Text(ctx context.Context, selector string) (string, error) {
	return d.eval(ctx, textJS(selector))
}

// Attr returns the named attribute of the first element matching the
// selector.
func (d *Detail) Attr(ctx context.Context, selector, name string) (string, error) {
	return d.eval(ctx, attrJS(selector, name))
}

func (d *Detail) eval(ctx context.Context, js string) (string, error) {
	runCtx, cancel := d.b.opContext(ctx, d.tabCtx)
	defer cancel()

	var res lookupResult
	if err := chromedp.Run(runCtx, chromedp.Evaluate(js, &res)); err != nil {
		return "", fmt.Errorf("evaluate lookup: %w", err)
	}
	if !res.Found {
		return "", errNoMatch
	}
	return res.Value, nil
}

// Close shuts the detail tab down.
func (d *Detail) Close() error {
	d.cancel()
	return nil
}
