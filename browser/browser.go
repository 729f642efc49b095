// Package browser drives a headless Chrome session and exposes the listing
// and detail pages as scraper surfaces. One browser runs for the whole
// traversal; each product detail opens in its own tab and is closed before
// the next item begins.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures the Chrome session and its navigation retry policy.
type Options struct {
	Headless     bool
	UserAgent    string
	NavTimeout   time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultOptions returns a headless configuration suitable for unattended
// runs.
func DefaultOptions() Options {
	return Options{
		Headless:     true,
		UserAgent:    "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		NavTimeout:   15 * time.Second,
		MaxRetries:   2,
		RetryBackoff: 200 * time.Millisecond,
	}
}

// Browser owns the exec allocator and the long-lived browser context.
type Browser struct {
	opts   Options
	logger *slog.Logger

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	tabCtx      context.Context
	cancelTab   context.CancelFunc
}

// New launches Chrome. Close must be called to release the process.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(opts.UserAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, execOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Start the browser process eagerly so launch failures surface here
	// instead of on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	return &Browser{
		opts:        opts,
		logger:      logger,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
	}, nil
}

// Close shuts the browser and its allocator down.
func (b *Browser) Close() {
	b.cancelTab()
	b.cancelAlloc()
}

// navigate drives tabCtx to url with bounded retries and exponential
// backoff, waiting for the document body on each attempt.
func (b *Browser) navigate(ctx context.Context, tabCtx context.Context, url string) error {
	var lastErr error
	for attempt := 0; attempt <= b.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, b.backoff(attempt)); err != nil {
				return err
			}
			b.logger.Debug("navigation retry",
				slog.String("url", url),
				slog.Int("attempt", attempt),
			)
		}

		runCtx, cancel := b.opContext(ctx, tabCtx)
		err := chromedp.Run(runCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body"),
		)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("navigate %s: %w", url, lastErr)
}

func (b *Browser) backoff(attempt int) time.Duration {
	base := b.opts.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return base * time.Duration(1<<(attempt-1))
}

// opContext bounds one browser operation by the caller's deadline when it
// has one, falling back to the configured navigation timeout.
func (b *Browser) opContext(ctx context.Context, tabCtx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(tabCtx, deadline)
	}
	return context.WithTimeout(tabCtx, b.opts.NavTimeout)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
