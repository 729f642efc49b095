// Package sink delivers a collected record set to its destination: the
// remote spreadsheet, or local CSV/JSON files for runs without credentials.
package sink

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mfukuda/dealsheet/models"
)

// Header is the fixed output header row, one column per record field.
var Header = []string{
	"ASIN",
	"Product Name",
	"Number of Products",
	"Reference Price (JPY)",
	"Price per Unit (JPY)",
	"Discount Rate (%)",
	"Discount Amount (JPY)",
}

// Sink accepts the final record set in collection order. Write is a single
// bulk delivery; retries are the caller's responsibility.
type Sink interface {
	Write(ctx context.Context, records []models.ProductRecord) error
	Close() error
}

// Validator is implemented by sinks that can check their output after the
// run, such as the file sinks.
type Validator interface {
	Validate() error
}

// ErrAuth wraps a failure to authenticate against the destination store.
type ErrAuth struct {
	Err error
}

func (e ErrAuth) Error() string {
	return fmt.Errorf("sink auth: %w", e.Err).Error()
}

func (e ErrAuth) Unwrap() error {
	return e.Err
}

// ErrWrite wraps a failed delivery. The destination may have been cleared
// without being rewritten; callers decide whether to retry.
type ErrWrite struct {
	Err error
}

func (e ErrWrite) Error() string {
	return fmt.Errorf("sink write: %w", e.Err).Error()
}

func (e ErrWrite) Unwrap() error {
	return e.Err
}

// Row renders one record into the fixed column order. Absent numeric fields
// become empty cells; the discount pair keeps the sheet's display precision.
func Row(rec models.ProductRecord) []string {
	return []string{
		rec.ASIN,
		rec.Name,
		rec.Quantity,
		formatPrice(rec.ReferencePrice),
		formatPrice(rec.UnitPrice),
		formatFixed(rec.DiscountRate, 1),
		formatFixed(rec.DiscountAmount, 0),
	}
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatFixed(v *float64, decimals int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', decimals, 64)
}
