package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfukuda/dealsheet/browser"
	"github.com/mfukuda/dealsheet/config"
	"github.com/mfukuda/dealsheet/models"
	"github.com/mfukuda/dealsheet/scraper"
	"github.com/mfukuda/dealsheet/sink"
	"github.com/mfukuda/dealsheet/staticpage"
)

func main() {
	// A missing .env is fine; the environment may be set by the shell.
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()
	listingDefault := defaultCfg.ListingURL
	if value, ok := config.EnvString("DEALSHEET_LISTING_URL"); ok {
		listingDefault = value
	}
	spreadsheetDefault := defaultCfg.SpreadsheetID
	if value, ok := config.EnvString("DEALSHEET_SPREADSHEET_ID"); ok {
		spreadsheetDefault = value
	}
	credentialsDefault := defaultCfg.CredentialsFile
	if value, ok := config.EnvString("DEALSHEET_CREDENTIALS_FILE"); ok {
		credentialsDefault = value
	}
	sinkDefault := defaultCfg.SinkKind
	if value, ok := config.EnvString("DEALSHEET_SINK"); ok {
		sinkDefault = value
	}
	maxScrollsDefault := defaultCfg.MaxScrollSteps
	if value, ok, err := config.EnvInt("DEALSHEET_MAX_SCROLLS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid DEALSHEET_MAX_SCROLLS: %v\n", err)
		os.Exit(1)
	} else if ok {
		maxScrollsDefault = value
	}
	settleDefault := defaultCfg.SettleDelay
	if value, ok, err := config.EnvDuration("DEALSHEET_SETTLE_DELAY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid DEALSHEET_SETTLE_DELAY: %v\n", err)
		os.Exit(1)
	} else if ok {
		settleDefault = value
	}

	listingURL := flag.String("listing-url", listingDefault, "Listing page URL to traverse")
	backend := flag.String("backend", defaultCfg.Backend, "Listing backend: chrome or static")
	headless := flag.Bool("headless", defaultCfg.Headless, "Run Chrome headless")
	scrollPx := flag.Int("scroll-px", defaultCfg.ScrollStepPx, "Scroll increment per step (pixels)")
	settleDelay := flag.Duration("settle-delay", settleDefault, "Wait after each scroll for lazy content")
	itemDelay := flag.Duration("item-delay", defaultCfg.ItemDelay, "Delay between detail page visits")
	emptyLimit := flag.Int("empty-limit", defaultCfg.EmptyPassLimit, "Consecutive empty passes before stopping")
	maxScrolls := flag.Int("max-scrolls", maxScrollsDefault, "Hard cap on scroll steps")
	detailTimeout := flag.Duration("detail-timeout", defaultCfg.DetailTimeout, "Timeout per product detail page")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Navigation retry attempts per page")
	retryBackoff := flag.Duration("retry-backoff", defaultCfg.RetryBackoff, "Initial navigation retry backoff")
	sinkKind := flag.String("sink", sinkDefault, "Destination: sheets, csv, json, or dual")
	spreadsheetID := flag.String("spreadsheet-id", spreadsheetDefault, "Target spreadsheet ID (sheets sink)")
	sheetName := flag.String("sheet", defaultCfg.SheetName, "Worksheet name (sheets sink)")
	credentialsFile := flag.String("credentials", credentialsDefault, "Service account credentials file (sheets sink)")
	outputFile := flag.String("output", defaultCfg.OutputFile, "Output file path (file sinks)")
	userAgent := flag.String("user-agent", defaultCfg.UserAgent, "User agent for page fetches")
	metricsAddr := flag.String("metrics-addr", defaultCfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.ListingURL = *listingURL
	cfg.Backend = strings.ToLower(*backend)
	cfg.Headless = *headless
	cfg.ScrollStepPx = *scrollPx
	cfg.SettleDelay = *settleDelay
	cfg.ItemDelay = *itemDelay
	cfg.EmptyPassLimit = *emptyLimit
	cfg.MaxScrollSteps = *maxScrolls
	cfg.DetailTimeout = *detailTimeout
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = *retryBackoff
	cfg.SinkKind = strings.ToLower(*sinkKind)
	cfg.SpreadsheetID = *spreadsheetID
	cfg.SheetName = *sheetName
	cfg.CredentialsFile = *credentialsFile
	cfg.OutputFile = *outputFile
	cfg.UserAgent = *userAgent
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current item")
	}()

	metrics := scraper.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting traversal",
		slog.String("listing_url", cfg.ListingURL),
		slog.String("backend", cfg.Backend),
		slog.String("sink", cfg.SinkKind),
	)

	listing, opener, cleanup, err := buildSurfaces(ctx, cfg)
	if err != nil {
		slog.Error("initialising listing surface", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	out, err := buildSink(ctx, cfg)
	if err != nil {
		slog.Error("initialising sink", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := out.Close(); err != nil {
			slog.Error("close sink", slog.Any("error", err))
		}
	}()

	extractor := scraper.NewExtractor(scraper.DefaultStrategies(), logger)
	traverser := scraper.NewTraverser(cfg, listing, opener, extractor, metrics, logger)

	result, runErr := traverser.Run(ctx)
	aborted := runErr != nil
	if aborted {
		slog.Error("traversal ended early", slog.Any("error", runErr))
	}

	var writeErr error
	if len(result.Records) > 0 || !aborted {
		writeErr = out.Write(ctx, result.Records)
		if writeErr != nil {
			metrics.IncSinkFailure()
			slog.Error("sink write failed", slog.Any("error", writeErr))
		} else {
			metrics.AddSinkRows(len(result.Records))
			if v, ok := out.(sink.Validator); ok {
				if err := v.Validate(); err != nil {
					slog.Warn("output validation", slog.Any("error", err))
				}
			}
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, aborted, writeErr)

	if aborted || writeErr != nil {
		os.Exit(1)
	}
}

func buildSurfaces(ctx context.Context, cfg *config.Config) (scraper.ListingSurface, scraper.DetailOpener, func(), error) {
	switch cfg.Backend {
	case "chrome":
		b, err := browser.New(ctx, browser.Options{
			Headless:     cfg.Headless,
			UserAgent:    cfg.UserAgent,
			NavTimeout:   cfg.DetailTimeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		}, slog.Default())
		if err != nil {
			return nil, nil, nil, err
		}
		listing, err := b.OpenListing(ctx, cfg.ListingURL)
		if err != nil {
			b.Close()
			return nil, nil, nil, err
		}
		return listing, listing, b.Close, nil
	case "static":
		s, err := staticpage.New(cfg.ListingURL, cfg.UserAgent, cfg.DetailTimeout, slog.Default())
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

func buildSink(ctx context.Context, cfg *config.Config) (sink.Sink, error) {
	switch cfg.SinkKind {
	case "sheets":
		return sink.NewSheetsSink(ctx, cfg.SpreadsheetID, cfg.SheetName, cfg.CredentialsFile, slog.Default())
	case "csv":
		return sink.NewCSVSink(cfg.OutputFile)
	case "json":
		return sink.NewJSONSink(cfg.OutputFile)
	case "dual":
		jsonFilename := strings.TrimSuffix(cfg.OutputFile, ".csv") + ".jsonl"
		return sink.NewDualSink(cfg.OutputFile, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported sink: %s", cfg.SinkKind)
	}
}

func printSummary(result *models.TraversalResult, aborted bool, writeErr error) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)

	switch {
	case aborted:
		fmt.Println("Collection aborted early; partial results below")
	case writeErr != nil:
		fmt.Println("Collection complete; delivery FAILED")
	default:
		fmt.Println("Collection complete; delivery succeeded")
	}

	fmt.Printf("  Records:          %d\n", len(result.Records))
	fmt.Printf("  Discovered:       %d\n", result.Stats.Discovered)
	fmt.Printf("  Processed:        %d\n", result.Stats.Processed)
	fmt.Printf("  Skipped invalid:  %d\n", result.Stats.SkippedInvalid)
	fmt.Printf("  Skipped errors:   %d\n", result.Stats.SkippedError)
	fmt.Printf("  Scroll steps:     %d\n", result.Stats.ScrollSteps)
	fmt.Printf("  Duration:         %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	if writeErr != nil {
		fmt.Printf("  Delivery error:   %v\n", writeErr)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
