// Package parser holds the pure text-to-value helpers: product identifier
// extraction from URLs, localized price parsing, and the discount math.
package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// asinPattern matches the two product URL shapes used for a product
// reference. An ASIN is exactly 10 uppercase alphanumerics; longer tokens
// must not match, so the capture is bounded by a separator or end of string.
var asinPattern = regexp.MustCompile(`(?:/dp/|/gp/product/)([A-Z0-9]{10})(?:[/?#]|$)`)

// amountPattern finds the first numeric run after currency noise is removed.
var amountPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

var currencyCleaner = strings.NewReplacer(
	"¥", "",
	"￥", "",
	"円", "",
	"JPY", "",
	",", "",
	" ", " ",
)

// ASINFromURL extracts the 10-character product identifier from a discovered
// handle URL. The second return is false when neither known URL shape
// matches; callers treat that as "not a product handle", never as an error.
func ASINFromURL(raw string) (string, bool) {
	m := asinPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseAmount converts localized currency text such as "¥1,234" or
// "1,234円" into a plain number. Failure to find a number is reported via
// the bool, not an error: a missing price is an absent field.
func ParseAmount(text string) (float64, bool) {
	cleaned := currencyCleaner.Replace(strings.TrimSpace(text))
	match := amountPattern.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// Discount derives the discount amount and rate from a reference price and a
// unit price. It is defined only when both inputs are present and the
// reference price is positive; otherwise both returns are nil. A zero or
// negative discount is a valid result and is preserved, not clamped.
//
// The amount is rounded to whole yen and the rate to one decimal place,
// matching the destination sheet's display convention.
func Discount(ref, unit *float64) (amount, rate *float64) {
	if ref == nil || unit == nil || *ref <= 0 {
		return nil, nil
	}
	a := math.Round(*ref - *unit)
	r := math.Round((*ref-*unit)/(*ref)*1000) / 10
	return &a, &r
}
