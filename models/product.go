// Package models defines data structures shared across the collector.
package models

import "time"

// ProductRecord is one collected product. ASIN is always present; every
// other field may be empty or nil when extraction missed it. DiscountRate
// and DiscountAmount are either both set or both nil.
type ProductRecord struct {
	ASIN           string    `csv:"asin" json:"asin"`
	Name           string    `csv:"name" json:"name"`
	Quantity       string    `csv:"quantity" json:"quantity,omitempty"`
	ReferencePrice *float64  `csv:"reference_price" json:"reference_price,omitempty"`
	UnitPrice      *float64  `csv:"unit_price" json:"unit_price,omitempty"`
	DiscountRate   *float64  `csv:"discount_rate" json:"discount_rate,omitempty"`
	DiscountAmount *float64  `csv:"discount_amount" json:"discount_amount,omitempty"`
	ScrapedAt      time.Time `csv:"scraped_at" json:"scraped_at"`
}

// TraversalStats holds the counters a long-running traversal reports.
type TraversalStats struct {
	Discovered     int
	Processed      int
	SkippedInvalid int
	SkippedError   int
	EmptyPasses    int
	ScrollSteps    int
}

// TraversalResult is the outcome of one scroll-and-scrape run. Records keep
// collection order and are valid even when the run ended early.
type TraversalResult struct {
	Records   []ProductRecord
	Stats     TraversalStats
	StartTime time.Time
	EndTime   time.Time
}
