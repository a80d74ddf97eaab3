// Package main wires together the lead scraper binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dmaguire/leadharvester/internal/api"
	"github.com/dmaguire/leadharvester/internal/browser"
	"github.com/dmaguire/leadharvester/internal/config"
	"github.com/dmaguire/leadharvester/internal/logging"
	"github.com/dmaguire/leadharvester/internal/probe"
	"github.com/dmaguire/leadharvester/internal/progress"
	"github.com/dmaguire/leadharvester/internal/scrape"
	"github.com/dmaguire/leadharvester/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// One positional argument selects the scrape mode; no argument means a
	// quick test run.
	mode := "test"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "test", "full", "debug":
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q (want test, full, or debug)\n", mode)
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, mode, logger); err != nil {
		logger.Error("crawl failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, mode string, logger *zap.Logger) error {
	modeCfg := cfg.Mode(mode)
	logger.Info("running scrape", zap.String("mode", mode))

	pool, err := postgres.Connect(ctx, postgres.PoolConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	defer pool.Close()

	session, err := browser.NewSession(browser.Config{
		Headless:       !modeCfg.Visible,
		UserAgents:     cfg.Browser.UserAgents,
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		NavTimeout:     cfg.NavTimeout(),
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("browser init: %w", err)
	}
	defer func() {
		_ = session.Close()
	}()

	tracker := progress.NewTracker()
	if cfg.Metrics.Enabled {
		metricsServer := api.New(cfg.Metrics.Port, tracker.Snapshot, logger.Named("api"))
		metricsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
	}

	businessStore, err := postgres.NewBusinessStore(pool, logger.Named("store"))
	if err != nil {
		return err
	}
	runStore, err := postgres.NewRunStore(pool)
	if err != nil {
		return err
	}

	pacer := scrape.NewPacer(scrape.PacerConfig{
		DelayMin:           time.Duration(cfg.Pacing.DelayMinSec) * time.Second,
		DelayMax:           time.Duration(cfg.Pacing.DelayMaxSec) * time.Second,
		BreakMin:           time.Duration(cfg.Pacing.SessionBreakMinSec) * time.Second,
		BreakMax:           time.Duration(cfg.Pacing.SessionBreakMaxSec) * time.Second,
		RequestsPerSession: cfg.Pacing.RequestsPerSession,
	}, logger.Named("pacer"))

	extractor := scrape.NewExtractor(scrape.WebsiteStrategy(cfg.Scrape.WebsiteStrategy), logger.Named("extractor"))

	navigator := scrape.NewNavigator(session, pacer, extractor, scrape.NavigatorConfig{
		MaxPages:        modeCfg.MaxPages,
		ListingsPerPage: cfg.Scrape.ListingsPerPage,
		ResultsWait:     time.Duration(cfg.Scrape.ResultsWaitSec) * time.Second,
		DetailWait:      time.Duration(cfg.Scrape.DetailWaitSec) * time.Second,
	}, logger.Named("navigator"))

	var prober scrape.Prober
	if cfg.Probe.Enabled {
		prober = probe.New(probe.Config{
			UserAgent: cfg.Probe.UserAgent,
			Timeout:   time.Duration(cfg.Probe.TimeoutSeconds) * time.Second,
		}, logger.Named("probe"))
	}

	orchestrator := scrape.NewOrchestrator(navigator, businessStore, runStore, pacer, prober,
		scrape.OrchestratorConfig{
			Locations:   cfg.Scrape.Locations,
			Categories:  cfg.Scrape.Categories,
			LocationCap: modeCfg.Locations,
			CategoryCap: modeCfg.Categories,
		}, logger.Named("orchestrator"))
	orchestrator.Observe(tracker)

	summary, runErr := orchestrator.Run(ctx, nil, nil)
	printSummary(mode, summary)
	return runErr
}

// printSummary writes the end-of-run report. It runs on every exit path,
// partial failures included.
func printSummary(mode string, summary scrape.Summary) {
	fmt.Println("==================================================")
	fmt.Printf("Scraping Summary (%s mode), status: %s\n", mode, summary.Status)
	fmt.Println("==================================================")
	fmt.Printf("Total businesses found:      %d\n", summary.Counters.BusinessesFound)
	fmt.Printf("New businesses added:        %d\n", summary.Counters.NewBusinessesAdded)
	fmt.Printf("Businesses without websites: %d\n", summary.Counters.BusinessesWithoutWebsites)
	fmt.Println("==================================================")
}
