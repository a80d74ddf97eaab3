package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DetailMarker appears once a listing's detail view has rendered.
const DetailMarker = `[role="main"]`

// NavigatorConfig bounds one query's traversal.
type NavigatorConfig struct {
	// MaxPages caps pagination depth for the query.
	MaxPages int
	// ListingsPerPage caps how many listings are opened per result page.
	ListingsPerPage int
	// ResultsWait bounds the wait for the results marker; expiry means the
	// query simply has no results.
	ResultsWait time.Duration
	// DetailWait bounds the wait for a listing's detail view.
	DetailWait time.Duration
}

// Navigator drives the browser through one search query's result pages,
// extracting each listing and handing records to a sink immediately.
type Navigator struct {
	page      Page
	pacer     *Pacer
	extractor *Extractor
	cfg       NavigatorConfig
	logger    *zap.Logger
}

// NewNavigator wires a navigator over the given page, pacer, and extractor.
func NewNavigator(page Page, pacer *Pacer, extractor *Extractor, cfg NavigatorConfig, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.ListingsPerPage <= 0 {
		cfg.ListingsPerPage = 20
	}
	if cfg.ResultsWait <= 0 {
		cfg.ResultsWait = 10 * time.Second
	}
	if cfg.DetailWait <= 0 {
		cfg.DetailWait = 5 * time.Second
	}
	return &Navigator{page: page, pacer: pacer, extractor: extractor, cfg: cfg, logger: logger}
}

// Crawl runs one (location, category) query to completion. Transient
// failures (timeouts, missing markers, per-listing errors) are contained
// here: the query degrades to fewer records and Crawl returns nil so the
// caller can move on to the next pair. Only systemic errors propagate:
// context cancellation, or a sink refusing records.
func (n *Navigator) Crawl(ctx context.Context, location, category string, sink Sink) error {
	query := SearchURL(location, category)
	log := n.logger.With(zap.String("location", location), zap.String("category", category))
	log.Info("searching", zap.String("url", query))

	if err := n.pace(ctx); err != nil {
		return err
	}
	if err := n.page.Navigate(ctx, query); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("search navigation failed", zap.Error(err))
		queriesTotal.WithLabelValues("error").Inc()
		return nil
	}

	if err := n.page.WaitVisible(ctx, ResultsMarker, n.cfg.ResultsWait); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A query yielding no results is not an error.
		log.Warn("no results found")
		queriesTotal.WithLabelValues("no_results").Inc()
		return nil
	}

	for pageNum := 1; ; pageNum++ {
		log.Info("processing result page", zap.Int("page", pageNum))
		if err := n.processPage(ctx, log, sink); err != nil {
			if ctx.Err() != nil || isSinkError(err) {
				return err
			}
			log.Error("result page failed, partial records stand", zap.Error(err))
			queriesTotal.WithLabelValues("error").Inc()
			return nil
		}

		if pageNum >= n.cfg.MaxPages {
			break
		}
		hasNext, err := n.page.HasNextPage(ctx)
		if err != nil || !hasNext {
			break
		}
		if err := n.pace(ctx); err != nil {
			return err
		}
		if err := n.page.NextPage(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("pagination failed, partial records stand", zap.Error(err))
			queriesTotal.WithLabelValues("error").Inc()
			return nil
		}
	}

	queriesTotal.WithLabelValues("ok").Inc()
	return nil
}

// processPage walks the current result page's listings in presented order.
// The listing collection is re-resolved before every index access because
// opening a detail view and coming back invalidates prior DOM references.
func (n *Navigator) processPage(ctx context.Context, log *zap.Logger, sink Sink) error {
	total, err := n.page.CountListings(ctx)
	if err != nil {
		return fmt.Errorf("count listings: %w", err)
	}
	if total > n.cfg.ListingsPerPage {
		total = n.cfg.ListingsPerPage
	}

	for i := 0; i < total; i++ {
		current, err := n.page.CountListings(ctx)
		if err != nil {
			return fmt.Errorf("re-resolve listings: %w", err)
		}
		if i >= current {
			break
		}

		if err := n.processListing(ctx, log, i, sink); err != nil {
			if ctx.Err() != nil || isSinkError(err) {
				return err
			}
			log.Warn("skipping listing", zap.Int("index", i), zap.Error(err))
			listingsSkippedTotal.Inc()
		}
	}
	return nil
}

func (n *Navigator) processListing(ctx context.Context, log *zap.Logger, index int, sink Sink) error {
	name, err := n.page.ListingName(ctx, index)
	if err != nil {
		return fmt.Errorf("listing name: %w", err)
	}

	// Opening a detail view is a navigation request like any other: it gets
	// paced and counts toward the session-break threshold.
	if err := n.pace(ctx); err != nil {
		return err
	}
	if err := n.page.OpenListing(ctx, index); err != nil {
		return fmt.Errorf("open listing: %w", err)
	}
	// Whatever happens from here, get back to the results view so the next
	// index resolves against the right collection.
	defer func() {
		if backErr := n.page.Back(ctx); backErr != nil && ctx.Err() == nil {
			log.Warn("back to results failed", zap.Error(backErr))
		}
	}()

	if err := n.page.WaitVisible(ctx, DetailMarker, n.cfg.DetailWait); err != nil {
		// Detail view never loaded; the listing yields nothing.
		return fmt.Errorf("detail view timeout: %w", err)
	}

	html, err := n.page.Content(ctx)
	if err != nil {
		return fmt.Errorf("detail content: %w", err)
	}

	rec := n.extractor.Extract(html, name)
	if rec.Name == "" {
		return errors.New("listing has no name")
	}
	if sourceURL, err := n.page.Location(ctx); err == nil {
		rec.SourceURL = sourceURL
	}

	log.Info("extracted listing",
		zap.String("name", rec.Name),
		zap.String("phone", rec.Phone),
		zap.Bool("has_website", rec.HasWebsite))
	listingsExtractedTotal.Inc()

	if err := sink(ctx, rec); err != nil {
		return &sinkError{err: err}
	}
	return nil
}

func (n *Navigator) pace(ctx context.Context) error {
	if n.pacer == nil {
		return nil
	}
	if err := n.pacer.Wait(ctx); err != nil {
		return err
	}
	requestsPacedTotal.Inc()
	return n.pacer.RecordRequest(ctx)
}

// sinkError marks a sink refusal so it is not mistaken for a transient
// per-listing failure.
type sinkError struct{ err error }

func (e *sinkError) Error() string { return "sink: " + e.err.Error() }
func (e *sinkError) Unwrap() error { return e.err }

func isSinkError(err error) bool {
	var se *sinkError
	return errors.As(err, &se)
}
