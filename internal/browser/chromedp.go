// Package browser implements the scrape.Page contract with chromedp and
// headless Chrome.
package browser

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/dmaguire/leadharvester/internal/scrape"
)

// Listing-card selectors. The primary one matches the current markup; the
// alternate shows up on the map-style layout.
const (
	listingSelector     = ".rllt__details"
	listingNamePrimary  = ".OSrXXb"
	listingNameAlt      = ".qBF1Pd"
	detailSettleDelay   = 2 * time.Second
	backSettleDelay     = time.Second
	nextPageSettleDelay = 2 * time.Second
)

// stealthScript hides the most common automation tells before any page
// script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
`

// Config controls the browser session.
type Config struct {
	Headless       bool
	UserAgents     []string
	ViewportWidth  int
	ViewportHeight int
	NavTimeout     time.Duration
}

// Session is a single browser tab owned by one crawl for its whole lifetime.
// It satisfies scrape.Page; every listing access re-queries the live DOM, so
// indices stay meaningful across the open/extract/back cycle.
type Session struct {
	cfg         Config
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	logger      *zap.Logger
}

var _ scrape.Page = (*Session)(nil)

// NewSession launches the browser and prepares one tab.
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = 1920, 1080
	}

	userAgent := pickUserAgent(cfg.UserAgents)
	logger.Info("starting browser",
		zap.Bool("headless", cfg.Headless),
		zap.String("user_agent", userAgent))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	warmup := chromedp.Tasks{
		emulation.SetUserAgentOverride(userAgent),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	}
	if err := chromedp.Run(tabCtx, warmup); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser warmup: %w", err)
	}

	return &Session{
		cfg:         cfg,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		logger:      logger,
	}, nil
}

// Close releases the tab and the browser process. Safe to call on every exit
// path; each cancel is independent.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.tabCancel()
	s.allocCancel()
	return nil
}

// Navigate loads url and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.bound(ctx, s.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until selector renders or the timeout expires.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	runCtx, cancel := s.bound(ctx, timeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// CountListings re-queries the live DOM for listing cards. Never cached:
// any navigation invalidates the collection.
func (s *Session) CountListings(ctx context.Context) (int, error) {
	runCtx, cancel := s.bound(ctx, s.cfg.NavTimeout)
	defer cancel()
	var count int
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, listingSelector)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &count)); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return count, nil
}

// ListingName reads the display name from the index-th listing card.
func (s *Session) ListingName(ctx context.Context, index int) (string, error) {
	runCtx, cancel := s.bound(ctx, s.cfg.NavTimeout)
	defer cancel()
	script := fmt.Sprintf(`(() => {
		const cards = document.querySelectorAll(%q);
		const card = cards[%d];
		if (!card) return "";
		const name = card.querySelector(%q) || card.querySelector(%q);
		return name ? name.innerText.trim() : "";
	})()`, listingSelector, index, listingNamePrimary, listingNameAlt)
	var name string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &name)); err != nil {
		return "", fmt.Errorf("listing name %d: %w", index, err)
	}
	return name, nil
}

// OpenListing clicks through to the index-th listing's detail view.
func (s *Session) OpenListing(ctx context.Context, index int) error {
	runCtx, cancel := s.bound(ctx, s.cfg.NavTimeout)
	defer cancel()
	script := fmt.Sprintf(`(() => {
		const cards = document.querySelectorAll(%q);
		const card = cards[%d];
		if (!card) return false;
		const link = card.closest("a") || card;
		link.click();
		return true;
	})()`, listingSelector, index)
	var clicked bool
	if err := chromedp.Run(runCtx,
		chromedp.Evaluate(script, &clicked),
		chromedp.Sleep(detailSettleDelay),
	); err != nil {
		return fmt.Errorf("open listing %d: %w", index, err)
	}
	if !clicked {
		return fmt.Errorf("open listing %d: card vanished", index)
	}
	return nil
}

// Content snapshots the rendered HTML of the current view.
func (s *Session) Content(ctx context.Context) (string, error) {
	runCtx, cancel := s.bound(ctx, s.cfg.NavTimeout)
	defer cancel()
	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return html, nil
}

// Location reports the browser's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	runCtx, cancel := s.bound(ctx, s.cfg.NavTimeout)
	defer cancel()
	var url string
	if err := chromedp.Run(runCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("page location: %w", err)
	}
	return url, nil
}

// Back returns to the results view after a detail visit.
func (s *Session) Back(ctx context.Context) error {
	runCtx, cancel := s.bound(ctx, s.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx,
		chromedp.NavigateBack(),
		chromedp.Sleep(backSettleDelay),
	); err != nil {
		return fmt.Errorf("navigate back: %w", err)
	}
	return nil
}

// HasNextPage reports whether the pagination affordance exists.
func (s *Session) HasNextPage(ctx context.Context) (bool, error) {
	runCtx, cancel := s.bound(ctx, s.cfg.NavTimeout)
	defer cancel()
	var present bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, scrape.NextPageSelector)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &present)); err != nil {
		return false, fmt.Errorf("check next page: %w", err)
	}
	return present, nil
}

// NextPage advances to the next result page.
func (s *Session) NextPage(ctx context.Context) error {
	runCtx, cancel := s.bound(ctx, s.cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx,
		chromedp.Click(scrape.NextPageSelector, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(nextPageSettleDelay),
	); err != nil {
		return fmt.Errorf("next page: %w", err)
	}
	return nil
}

// bound ties a chromedp run to both the caller's context and a timeout.
func (s *Session) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	stop := forwardCancel(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// forwardCancel cancels the chromedp task when the caller's context dies.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func pickUserAgent(agents []string) string {
	if len(agents) == 0 {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return agents[rand.IntN(len(agents))]
}
