package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mfukuda/dealsheet/config"
)

// scriptedListing replays a fixed sequence of discovery passes. Passes
// beyond the script return the final entry, mimicking a listing that stops
// producing new content.
type scriptedListing struct {
	passes  [][]Handle
	pass    int
	scrolls int
}

func (l *scriptedListing) Handles(context.Context) ([]Handle, error) {
	idx := l.pass
	if idx >= len(l.passes) {
		idx = len(l.passes) - 1
	}
	l.pass++
	if len(l.passes) == 0 {
		return nil, nil
	}
	return l.passes[idx], nil
}

func (l *scriptedListing) Scroll(context.Context, int) error {
	l.scrolls++
	return nil
}

// fakeOpener opens map-backed detail surfaces and can fail for chosen URLs.
type fakeOpener struct {
	details map[string]*fakeDetail // keyed by handle URL
	failing map[string]error
	opened  []string
}

func (o *fakeOpener) OpenDetail(_ context.Context, h Handle) (DetailSurface, error) {
	if err, ok := o.failing[h.URL]; ok {
		return nil, err
	}
	o.opened = append(o.opened, h.URL)
	if d, ok := o.details[h.URL]; ok {
		return d, nil
	}
	return &fakeDetail{}, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.ItemDelay = 0
	cfg.SettleDelay = 0
	return cfg
}

func newTestTraverser(cfg *config.Config, listing ListingSurface, opener DetailOpener) *Traverser {
	return NewTraverser(cfg, listing, opener, NewExtractor(DefaultStrategies(), testLogger()), nil, testLogger())
}

func dpHandle(asin string) Handle {
	return Handle{URL: "https://www.amazon.co.jp/dp/" + asin}
}

// Scenario: five unique items all visible on the first pass, nothing new
// afterwards. Exactly five records, one non-empty batch, three empty passes,
// and the loop halts at the empty-pass threshold rather than the scroll cap.
func TestTraverserExhaustsAfterEmptyPasses(t *testing.T) {
	first := []Handle{
		dpHandle("B000000001"),
		dpHandle("B000000002"),
		dpHandle("B000000003"),
		dpHandle("B000000004"),
		dpHandle("B000000005"),
	}
	listing := &scriptedListing{passes: [][]Handle{first, first}}
	opener := &fakeOpener{}

	tr := newTestTraverser(testConfig(), listing, opener)
	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Records) != 5 {
		t.Fatalf("records = %d, want 5", len(result.Records))
	}
	if result.Stats.Processed != 5 || result.Stats.Discovered != 5 {
		t.Fatalf("stats = %+v, want 5 processed and discovered", result.Stats)
	}
	if result.Stats.EmptyPasses != 3 {
		t.Fatalf("empty passes = %d, want 3", result.Stats.EmptyPasses)
	}
	if result.Stats.ScrollSteps >= 20 {
		t.Fatalf("scroll steps = %d, should halt well before the cap", result.Stats.ScrollSteps)
	}
	// Visual order of the batch must be preserved.
	for i, asin := range []string{"B000000001", "B000000002", "B000000003", "B000000004", "B000000005"} {
		if result.Records[i].ASIN != asin {
			t.Fatalf("record %d ASIN = %q, want %q", i, result.Records[i].ASIN, asin)
		}
	}
}

// The loop must terminate within the scroll cap no matter what the listing
// keeps producing.
func TestTraverserScrollCap(t *testing.T) {
	// A listing that yields one brand-new item on every pass, forever.
	listing := &endlessListing{}
	opener := &fakeOpener{}

	cfg := testConfig()
	tr := newTestTraverser(cfg, listing, opener)
	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Stats.ScrollSteps != cfg.MaxScrollSteps {
		t.Fatalf("scroll steps = %d, want %d", result.Stats.ScrollSteps, cfg.MaxScrollSteps)
	}
	// One batch per pass: the initial pass plus one per scroll step.
	if want := cfg.MaxScrollSteps + 1; len(result.Records) != want {
		t.Fatalf("records = %d, want %d", len(result.Records), want)
	}
}

type endlessListing struct {
	n int
}

func (l *endlessListing) Handles(context.Context) ([]Handle, error) {
	l.n++
	return []Handle{dpHandle(fmtASIN(l.n))}, nil
}

func (l *endlessListing) Scroll(context.Context, int) error { return nil }

func fmtASIN(n int) string {
	const digits = "0123456789"
	b := []byte("B000000000")
	for i := len(b) - 1; i > 0 && n > 0; i-- {
		b[i] = digits[n%10]
		n /= 10
	}
	return string(b)
}

// The empty-pass counter must reset when a later pass finds new items.
func TestTraverserEmptyCounterResets(t *testing.T) {
	passes := [][]Handle{
		{dpHandle("B000000001")},
		{dpHandle("B000000001")}, // empty: already seen
		{dpHandle("B000000001")}, // empty
		{dpHandle("B000000002")}, // new again, counter resets
		{dpHandle("B000000002")},
	}
	listing := &scriptedListing{passes: passes}
	opener := &fakeOpener{}

	tr := newTestTraverser(testConfig(), listing, opener)
	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
	if result.Stats.EmptyPasses != 3 {
		t.Fatalf("final empty passes = %d, want 3", result.Stats.EmptyPasses)
	}
}

// Scenario: an 11-character token fails the identifier pattern, so the
// handle is excluded from the batch and never counted as processed.
func TestTraverserMalformedIdentifierExcluded(t *testing.T) {
	passes := [][]Handle{{
		{URL: "https://www.amazon.co.jp/dp/B000123456X"},
		dpHandle("B000000001"),
	}}
	listing := &scriptedListing{passes: passes}
	opener := &fakeOpener{}

	tr := newTestTraverser(testConfig(), listing, opener)
	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Records) != 1 || result.Records[0].ASIN != "B000000001" {
		t.Fatalf("records = %+v, want just B000000001", result.Records)
	}
	if result.Stats.Processed != 1 {
		t.Fatalf("processed = %d, want 1", result.Stats.Processed)
	}
	if result.Stats.SkippedInvalid != 1 {
		t.Fatalf("skipped invalid = %d, want 1", result.Stats.SkippedInvalid)
	}
	if len(opener.opened) != 1 {
		t.Fatalf("opened = %v, malformed handle must not open a detail session", opener.opened)
	}
}

// One item's failure must not abort the rest of the batch, and the failed
// identifier is not retried on later passes.
func TestTraverserItemFailureContinuesBatch(t *testing.T) {
	passes := [][]Handle{{
		dpHandle("B000000001"),
		dpHandle("B000000002"),
		dpHandle("B000000003"),
	}}
	listing := &scriptedListing{passes: passes}
	opener := &fakeOpener{
		failing: map[string]error{
			dpHandle("B000000002").URL: errors.New("tab crashed"),
		},
	}

	tr := newTestTraverser(testConfig(), listing, opener)
	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(result.Records))
	}
	if result.Records[0].ASIN != "B000000001" || result.Records[1].ASIN != "B000000003" {
		t.Fatalf("unexpected records %+v", result.Records)
	}
	if result.Stats.SkippedError != 1 {
		t.Fatalf("skipped error = %d, want 1", result.Stats.SkippedError)
	}
}

// Duplicate handles for one identifier within a single pass collapse to one
// detail session.
func TestTraverserDedupWithinPass(t *testing.T) {
	passes := [][]Handle{{
		dpHandle("B000000001"),
		{URL: "https://www.amazon.co.jp/gp/product/B000000001"},
	}}
	listing := &scriptedListing{passes: passes}
	opener := &fakeOpener{}

	tr := newTestTraverser(testConfig(), listing, opener)
	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(result.Records))
	}
	if len(opener.opened) != 1 {
		t.Fatalf("opened %d detail sessions, want 1", len(opener.opened))
	}
}

// Cancellation ends the run early but keeps the records collected so far.
func TestTraverserCancellationKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	listing := &cancellingListing{cancel: cancel}
	opener := &fakeOpener{}

	tr := newTestTraverser(testConfig(), listing, opener)
	result, err := tr.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want the pre-cancel record kept", len(result.Records))
	}
}

// cancellingListing delivers one item, then cancels the run.
type cancellingListing struct {
	cancel context.CancelFunc
	pass   int
}

func (l *cancellingListing) Handles(context.Context) ([]Handle, error) {
	l.pass++
	if l.pass == 1 {
		return []Handle{dpHandle("B000000001")}, nil
	}
	l.cancel()
	return nil, nil
}

func (l *cancellingListing) Scroll(context.Context, int) error { return nil }

// A listing surface failure ends the traversal with the partial result.
func TestTraverserListingFailure(t *testing.T) {
	listing := &failingListing{}
	opener := &fakeOpener{}

	tr := newTestTraverser(testConfig(), listing, opener)
	result, err := tr.Run(context.Background())

	var le ErrListing
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want ErrListing", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("records = %d, want partial result kept", len(result.Records))
	}
}

type failingListing struct {
	pass int
}

func (l *failingListing) Handles(context.Context) ([]Handle, error) {
	l.pass++
	if l.pass == 1 {
		return []Handle{dpHandle("B000000001")}, nil
	}
	return nil, errors.New("browser disconnected")
}

func (l *failingListing) Scroll(context.Context, int) error { return nil }

// The run must finish promptly even with real delays configured, because
// the test listing produces nothing and the empty-pass threshold trips.
func TestTraverserSettleDelayIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.SettleDelay = 5 * time.Millisecond
	cfg.ItemDelay = time.Millisecond

	listing := &scriptedListing{passes: [][]Handle{{}}}
	tr := newTestTraverser(cfg, listing, &fakeOpener{})

	start := time.Now()
	result, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Records) != 0 {
		t.Fatalf("records = %d, want 0", len(result.Records))
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("run took %v, expected prompt termination", elapsed)
	}
}
