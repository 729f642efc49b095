package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/mfukuda/dealsheet/config"
	"github.com/mfukuda/dealsheet/models"
	"github.com/mfukuda/dealsheet/parser"
)

// Traverser runs the scroll-and-scrape loop against one listing surface.
// The traversal is strictly sequential: one discovery pass, then one detail
// session at a time, then one scroll step. The traverser owns its dedup
// tracker and scroll state for exactly one run.
type Traverser struct {
	cfg       *config.Config
	listing   ListingSurface
	opener    DetailOpener
	extractor *Extractor
	metrics   *Metrics
	logger    *slog.Logger
}

// NewTraverser wires a traversal over the given surfaces. metrics may be nil.
func NewTraverser(cfg *config.Config, listing ListingSurface, opener DetailOpener, extractor *Extractor, metrics *Metrics, logger *slog.Logger) *Traverser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Traverser{
		cfg:       cfg,
		listing:   listing,
		opener:    opener,
		extractor: extractor,
		metrics:   metrics,
		logger:    logger,
	}
}

type batchItem struct {
	handle Handle
	asin   string
}

// Run executes the traversal until the listing is exhausted or the scroll
// cap is reached. The returned result always carries whatever records were
// collected, including when the context was cancelled or the listing
// surface failed mid-run; the error then reports why the run ended early.
func (t *Traverser) Run(ctx context.Context) (*models.TraversalResult, error) {
	result := &models.TraversalResult{StartTime: time.Now()}
	tracker := NewDedupTracker()

	// ItemDelay <= 0 yields an unlimited limiter, so tests can run unpaced.
	pacer := rate.NewLimiter(rate.Every(t.cfg.ItemDelay), 1)

	emptyPasses := 0
	scrollSteps := 0

	defer func() {
		result.Stats.EmptyPasses = emptyPasses
		result.Stats.ScrollSteps = scrollSteps
		result.Stats.SkippedInvalid = tracker.SkippedInvalid()
		result.EndTime = time.Now()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		handles, err := t.listing.Handles(ctx)
		if err != nil {
			return result, ErrListing{Err: fmt.Errorf("enumerate handles: %w", err)}
		}

		batch := t.selectBatch(handles, tracker)
		result.Stats.Discovered += len(batch)
		t.metrics.IncDiscovered(len(batch))

		if len(batch) == 0 {
			emptyPasses++
			t.metrics.IncEmptyPass()
			t.logger.Debug("empty discovery pass",
				slog.Int("consecutive", emptyPasses),
				slog.Int("scroll_steps", scrollSteps),
			)
		} else {
			emptyPasses = 0
			for _, item := range batch {
				if err := pacer.Wait(ctx); err != nil {
					return result, err
				}

				tracker.Mark(item.asin)
				rec, err := t.processItem(ctx, item)
				if err != nil {
					result.Stats.SkippedError++
					t.metrics.IncSkipped(errorTypeLabel(err))
					t.logger.Warn("item skipped",
						slog.String("asin", item.asin),
						slog.Any("error", err),
					)
					continue
				}

				result.Records = append(result.Records, rec)
				result.Stats.Processed++
				t.metrics.IncProcessed()
			}

			t.logger.Info("discovery pass processed",
				slog.Int("new_items", len(batch)),
				slog.Int("total_records", len(result.Records)),
				slog.Int("skipped_invalid", tracker.SkippedInvalid()),
				slog.Int("skipped_error", result.Stats.SkippedError),
				slog.Int("scroll_steps", scrollSteps),
			)
		}

		if emptyPasses >= t.cfg.EmptyPassLimit {
			t.logger.Info("listing exhausted",
				slog.Int("empty_passes", emptyPasses),
				slog.Int("records", len(result.Records)),
			)
			return result, nil
		}
		if scrollSteps >= t.cfg.MaxScrollSteps {
			t.logger.Info("scroll cap reached",
				slog.Int("scroll_steps", scrollSteps),
				slog.Int("records", len(result.Records)),
			)
			return result, nil
		}

		if err := t.listing.Scroll(ctx, t.cfg.ScrollStepPx); err != nil {
			return result, ErrListing{Err: fmt.Errorf("scroll: %w", err)}
		}
		scrollSteps++
		t.metrics.IncScroll()

		if err := sleepCtx(ctx, t.cfg.SettleDelay); err != nil {
			return result, err
		}
	}
}

// selectBatch filters the visible handles down to new, well-formed items in
// document order. Handles without a parseable identifier are excluded and
// counted; duplicates within one pass collapse to their first occurrence.
func (t *Traverser) selectBatch(handles []Handle, tracker *DedupTracker) []batchItem {
	var batch []batchItem
	inBatch := make(map[string]struct{})

	for _, h := range handles {
		asin, ok := parser.ASINFromURL(h.URL)
		if !ok {
			if tracker.NoteInvalid(h.URL) {
				t.metrics.IncSkipped("invalid_identifier")
				t.logger.Debug("malformed handle excluded", slog.String("url", h.URL))
			}
			continue
		}
		if !tracker.IsNew(asin) {
			continue
		}
		if _, dup := inBatch[asin]; dup {
			continue
		}
		inBatch[asin] = struct{}{}
		batch = append(batch, batchItem{handle: h, asin: asin})
	}
	return batch
}

// processItem opens an isolated detail session for one handle, extracts the
// record, and guarantees the session is closed on every exit path.
func (t *Traverser) processItem(ctx context.Context, item batchItem) (models.ProductRecord, error) {
	dctx, cancel := context.WithTimeout(ctx, t.cfg.DetailTimeout)
	defer cancel()

	detail, err := t.opener.OpenDetail(dctx, item.handle)
	if err != nil {
		return models.ProductRecord{}, classifyItemError(err)
	}
	defer func() {
		if cerr := detail.Close(); cerr != nil {
			t.logger.Debug("close detail session",
				slog.String("asin", item.asin),
				slog.Any("error", cerr),
			)
		}
	}()

	start := time.Now()
	rec := t.extractor.Extract(dctx, detail, item.asin)
	t.metrics.ObserveExtract(time.Since(start))
	return rec, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
