package scrape

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// PacerConfig holds the delay ranges and the session-break threshold.
type PacerConfig struct {
	DelayMin time.Duration
	DelayMax time.Duration
	BreakMin time.Duration
	BreakMax time.Duration
	// RequestsPerSession is how many recorded requests trigger a session
	// break.
	RequestsPerSession int
}

// Pacer enforces polite inter-request delays and periodic longer session
// breaks. It is not safe for concurrent use; the single crawl task owns it.
type Pacer struct {
	cfg      PacerConfig
	requests int
	logger   *zap.Logger
	// sleep is swappable so tests do not wait out real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer builds a Pacer from the given ranges.
func NewPacer(cfg PacerConfig, logger *zap.Logger) *Pacer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pacer{
		cfg:    cfg,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Wait suspends the caller for a uniformly random duration in the configured
// delay range. Call it before every outbound request.
func (p *Pacer) Wait(ctx context.Context) error {
	d := randDuration(p.cfg.DelayMin, p.cfg.DelayMax)
	p.logger.Debug("pacing before next request", zap.Duration("delay", d))
	return p.sleep(ctx, d)
}

// RecordRequest counts one outbound request and, once the per-session
// threshold is reached, takes a longer session break and resets the counter.
func (p *Pacer) RecordRequest(ctx context.Context) error {
	p.requests++
	if p.cfg.RequestsPerSession <= 0 || p.requests < p.cfg.RequestsPerSession {
		return nil
	}
	d := randDuration(p.cfg.BreakMin, p.cfg.BreakMax)
	p.logger.Info("taking a session break",
		zap.Duration("break", d),
		zap.Int("requests_in_session", p.requests))
	sessionBreaksTotal.Inc()
	if err := p.sleep(ctx, d); err != nil {
		return err
	}
	p.requests = 0
	return nil
}

func randDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

// sleepCtx pauses for d but returns early if the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
