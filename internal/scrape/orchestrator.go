package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmaguire/leadharvester/internal/store"
)

// Prober optionally verifies that an extracted website URL is reachable.
// Probe failures never change what gets persisted; they are advisory.
type Prober interface {
	Verify(ctx context.Context, url string) bool
}

// Observer receives crawl progress as it happens. Calls are made inline from
// the crawl goroutine; implementations must not block.
type Observer interface {
	RunStarted(runID uuid.UUID, queries int)
	QueryStarted(location, category string)
	Progress(counters store.RunCounters)
	RunFinished(summary Summary)
}

// OrchestratorConfig carries the catalog and the active mode's caps.
type OrchestratorConfig struct {
	// Locations and Categories are the full default catalog.
	Locations  []string
	Categories []string
	// LocationCap and CategoryCap trim the effective lists; zero means all.
	LocationCap int
	CategoryCap int
}

// Summary is the end-of-run report, produced on every exit path.
type Summary struct {
	RunID    uuid.UUID
	Status   store.RunStatus
	Counters store.RunCounters
}

// Orchestrator iterates the location×category grid, feeding every extracted
// record straight into the upsert store and keeping the run ledger current.
type Orchestrator struct {
	nav      *Navigator
	upserter Upserter
	ledger   store.RunLedger
	pacer    *Pacer
	prober   Prober
	cfg      OrchestratorConfig
	logger   *zap.Logger
	now      func() time.Time
	observer Observer

	counters store.RunCounters
	// persisted counts successful upserts (created or updated); it decides
	// partial versus failed when a systemic error interrupts the run.
	persisted int
}

// NewOrchestrator wires the crawl pipeline together. prober may be nil.
func NewOrchestrator(
	nav *Navigator,
	upserter Upserter,
	ledger store.RunLedger,
	pacer *Pacer,
	prober Prober,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		nav:      nav,
		upserter: upserter,
		ledger:   ledger,
		pacer:    pacer,
		prober:   prober,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Observe registers a progress observer. Call before Run.
func (o *Orchestrator) Observe(obs Observer) {
	o.observer = obs
}

// Run crawls every (location, category) pair in order. Explicit arguments
// override the configured catalog; the mode caps then trim whichever list is
// in effect. The run ledger row is created before the first query and gets
// exactly one terminal transition: completed on success, partial when a
// systemic failure interrupted a run that had already persisted records,
// failed when nothing was persisted. The summary is valid on every return.
func (o *Orchestrator) Run(ctx context.Context, locations, categories []string) (Summary, error) {
	locations = capped(fallback(locations, o.cfg.Locations), o.cfg.LocationCap)
	categories = capped(fallback(categories, o.cfg.Categories), o.cfg.CategoryCap)

	o.counters = store.RunCounters{}
	o.persisted = 0
	o.logger.Info("starting crawl",
		zap.Strings("locations", locations),
		zap.Strings("categories", categories))

	runID, err := o.ledger.StartRun(ctx, o.now())
	if err != nil {
		return Summary{Status: store.RunFailed}, fmt.Errorf("start run: %w", err)
	}
	if o.observer != nil {
		o.observer.RunStarted(runID, len(locations)*len(categories))
	}

	for _, location := range locations {
		for _, category := range categories {
			if o.observer != nil {
				o.observer.QueryStarted(location, category)
			}
			if err := o.nav.Crawl(ctx, location, category, o.sink(location, category)); err != nil {
				return o.finish(ctx, runID, err), err
			}
			// A polite pause between completed searches.
			if o.pacer != nil {
				if err := o.pacer.Wait(ctx); err != nil {
					return o.finish(ctx, runID, err), err
				}
			}
		}
	}

	return o.finish(ctx, runID, nil), nil
}

// sink returns the per-record callback for one (location, category) pair.
// Persistence failures are contained here: they are logged and the crawl
// moves on, per the store contract.
func (o *Orchestrator) sink(location, category string) Sink {
	return func(ctx context.Context, rec Record) error {
		o.counters.BusinessesFound++

		if o.prober != nil && rec.WebsiteURL != "" && !o.prober.Verify(ctx, rec.WebsiteURL) {
			o.logger.Warn("extracted website did not respond",
				zap.String("name", rec.Name), zap.String("url", rec.WebsiteURL))
		}

		outcome, err := o.upserter.Upsert(ctx, rec, location, category)
		if err != nil {
			// The store already rolled back and logged; never abort the crawl.
			upsertsTotal.WithLabelValues("error").Inc()
			return nil
		}
		o.persisted++
		if outcome.Created {
			o.counters.NewBusinessesAdded++
			upsertsTotal.WithLabelValues("created").Inc()
		} else {
			upsertsTotal.WithLabelValues("updated").Inc()
		}
		if !outcome.HasWebsite {
			o.counters.BusinessesWithoutWebsites++
		}
		if o.observer != nil {
			o.observer.Progress(o.counters)
		}
		return nil
	}
}

// finish performs the single terminal ledger transition and builds the
// summary. It runs on every exit path, including systemic failures.
func (o *Orchestrator) finish(ctx context.Context, runID uuid.UUID, runErr error) Summary {
	status := store.RunCompleted
	var errLog *string
	if runErr != nil {
		// Partial when anything was persisted before the failure; failed
		// only for a run that never committed a row.
		if o.persisted > 0 {
			status = store.RunPartial
		} else {
			status = store.RunFailed
		}
		text := runErr.Error()
		errLog = &text
	}

	// Finalize even when the caller's context is gone; the ledger row must
	// not stay in running forever because of an interrupt.
	finishCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		finishCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := o.ledger.FinishRun(finishCtx, runID, o.now(), status, o.counters, errLog); err != nil {
		o.logger.Error("finalizing run ledger failed", zap.Error(err))
	}

	summary := Summary{RunID: runID, Status: status, Counters: o.counters}
	if o.observer != nil {
		o.observer.RunFinished(summary)
	}
	o.logger.Info("crawl finished",
		zap.String("run_id", runID.String()),
		zap.String("status", string(status)),
		zap.Int("businesses_found", summary.Counters.BusinessesFound),
		zap.Int("new_businesses_added", summary.Counters.NewBusinessesAdded),
		zap.Int("businesses_without_websites", summary.Counters.BusinessesWithoutWebsites))
	return summary
}

func fallback(explicit, defaults []string) []string {
	if len(explicit) > 0 {
		return explicit
	}
	return defaults
}

func capped(list []string, limit int) []string {
	if limit > 0 && limit < len(list) {
		return list[:limit]
	}
	return list
}
