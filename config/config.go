package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds collector configuration.
type Config struct {
	ListingURL string
	Backend    string // chrome or static
	UserAgent  string
	Headless   bool

	ScrollStepPx   int
	SettleDelay    time.Duration
	ItemDelay      time.Duration
	EmptyPassLimit int
	MaxScrollSteps int

	DetailTimeout time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration

	SinkKind        string // sheets, csv, json, or dual
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	OutputFile      string

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults mirroring the listing the
// collector was built against.
func DefaultConfig() *Config {
	return &Config{
		ListingURL:      "https://www.amazon.co.jp/ab/business-discounts",
		Backend:         "chrome",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Headless:        true,
		ScrollStepPx:    500,
		SettleDelay:     1500 * time.Millisecond,
		ItemDelay:       500 * time.Millisecond,
		EmptyPassLimit:  3,
		MaxScrollSteps:  20,
		DetailTimeout:   15 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    200 * time.Millisecond,
		SinkKind:        "csv",
		SheetName:       "Sheet1",
		CredentialsFile: "credentials.json",
		OutputFile:      "output/products.csv",
		MetricsAddr:     "",
		Verbose:         false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.ListingURL == "" {
		return fmt.Errorf("listing URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.ListingURL)
	if err != nil {
		return fmt.Errorf("invalid listing URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("listing URL must include a host")
	}

	if c.Backend != "chrome" && c.Backend != "static" {
		return fmt.Errorf("backend must be chrome or static")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.ScrollStepPx <= 0 {
		return fmt.Errorf("scroll step must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}
	if c.ItemDelay < 0 {
		return fmt.Errorf("item delay cannot be negative")
	}
	if c.EmptyPassLimit <= 0 {
		return fmt.Errorf("empty pass limit must be positive")
	}
	if c.MaxScrollSteps <= 0 {
		return fmt.Errorf("max scroll steps must be positive")
	}
	if c.DetailTimeout <= 0 {
		return fmt.Errorf("detail timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}

	switch c.SinkKind {
	case "sheets":
		if c.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet ID cannot be empty for the sheets sink")
		}
		if c.SheetName == "" {
			return fmt.Errorf("sheet name cannot be empty for the sheets sink")
		}
		if c.CredentialsFile == "" {
			return fmt.Errorf("credentials file cannot be empty for the sheets sink")
		}
	case "csv", "json", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty for file sinks")
		}
	default:
		return fmt.Errorf("sink must be sheets, csv, json, or dual")
	}

	return nil
}

// EnvString reads a string environment variable, reporting whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration reads a duration environment variable in Go duration syntax.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return parsed, true, nil
}
