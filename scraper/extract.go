package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mfukuda/dealsheet/models"
	"github.com/mfukuda/dealsheet/parser"
)

// FieldStrategy is one way to read a field from a detail surface. When Attr
// is empty the element's text content is used. Strategies are held in
// ordered chains; the first one yielding a non-empty value wins.
type FieldStrategy struct {
	Selector string
	Attr     string
}

// StrategySet holds the per-field strategy chains. Chains are plain data so
// new storefront layouts only need new entries, not new control flow.
type StrategySet struct {
	Name           []FieldStrategy
	Quantity       []FieldStrategy
	ReferencePrice []FieldStrategy
	UnitPrice      []FieldStrategy
}

// DefaultStrategies targets the business-discounts listing layout, ordered
// from the most specific selector to the broadest fallback.
func DefaultStrategies() StrategySet {
	return StrategySet{
		Name: []FieldStrategy{
			{Selector: "#productTitle"},
			{Selector: "span.a-truncate-full.a-offscreen"},
			{Selector: "h1 span"},
			{Selector: "a[title]", Attr: "title"},
		},
		Quantity: []FieldStrategy{
			{Selector: "li[data-minimum-quantity]", Attr: "data-minimum-quantity"},
			{Selector: "#quantity option[selected]", Attr: "value"},
		},
		ReferencePrice: []FieldStrategy{
			{Selector: "span.a-price.a-text-price[data-a-strike='true'] .a-offscreen"},
			{Selector: ".a-text-price .a-offscreen"},
			{Selector: "span[data-a-strike='true'] .a-offscreen"},
		},
		UnitPrice: []FieldStrategy{
			{Selector: "li[data-minimum-quantity]", Attr: "data-numeric-value"},
			{Selector: "#corePrice_feature_div .a-offscreen"},
			{Selector: "span.a-price:not(.a-text-price) .a-offscreen"},
			{Selector: "span.a-price-whole"},
		},
	}
}

// Extractor reads structured product fields from a detail surface. Missing
// fields are left empty; extraction never fails because of them.
type Extractor struct {
	strategies StrategySet
	logger     *slog.Logger
}

// NewExtractor builds an extractor with the given strategy chains.
func NewExtractor(strategies StrategySet, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{strategies: strategies, logger: logger}
}

// Extract reads all product fields for asin from the detail surface. Each
// field runs its strategy chain independently, so one miss never blocks the
// others. Price text is parsed from localized currency form; parse failure
// leaves the field nil.
func (e *Extractor) Extract(ctx context.Context, d DetailSurface, asin string) models.ProductRecord {
	rec := models.ProductRecord{
		ASIN:      asin,
		ScrapedAt: time.Now(),
	}

	rec.Name = e.lookup(ctx, d, e.strategies.Name)
	rec.Quantity = e.lookup(ctx, d, e.strategies.Quantity)

	if text := e.lookup(ctx, d, e.strategies.ReferencePrice); text != "" {
		if v, ok := parser.ParseAmount(text); ok {
			rec.ReferencePrice = &v
		}
	}
	if text := e.lookup(ctx, d, e.strategies.UnitPrice); text != "" {
		if v, ok := parser.ParseAmount(text); ok {
			rec.UnitPrice = &v
		}
	}

	// A price without a quantity is a single-unit offer.
	if rec.Quantity == "" && rec.UnitPrice != nil {
		rec.Quantity = "1"
	}

	rec.DiscountAmount, rec.DiscountRate = parser.Discount(rec.ReferencePrice, rec.UnitPrice)
	return rec
}

func (e *Extractor) lookup(ctx context.Context, d DetailSurface, chain []FieldStrategy) string {
	for _, st := range chain {
		var (
			value string
			err   error
		)
		if st.Attr == "" {
			value, err = d.Text(ctx, st.Selector)
		} else {
			value, err = d.Attr(ctx, st.Selector, st.Attr)
		}
		if err != nil {
			e.logger.Debug("strategy miss",
				slog.String("selector", st.Selector),
				slog.Any("error", err),
			)
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}
