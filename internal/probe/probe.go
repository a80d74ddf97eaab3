// Package probe performs lightweight liveness checks of extracted website
// URLs using Colly. Probing is advisory: an unreachable site is logged but
// the record is persisted as extracted.
package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls probe behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// WebsiteProber checks whether a website URL answers at all.
type WebsiteProber struct {
	cfg    Config
	base   *colly.Collector
	logger *zap.Logger
}

// New builds a WebsiteProber.
func New(cfg Config, logger *zap.Logger) *WebsiteProber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &WebsiteProber{cfg: cfg, base: c, logger: logger}
}

// Verify reports whether url answered with a non-server-error status. The
// request itself is bounded by the configured timeout; ctx only short-
// circuits a probe that has not started yet.
func (p *WebsiteProber) Verify(ctx context.Context, url string) bool {
	if ctx.Err() != nil {
		return false
	}
	alive := false

	collector := p.base.Clone()
	collector.OnResponse(func(r *colly.Response) {
		alive = r.StatusCode < http.StatusInternalServerError
	})
	collector.OnError(func(r *colly.Response, err error) {
		// A 4xx still proves something answers at the domain.
		if r != nil && r.StatusCode >= http.StatusBadRequest && r.StatusCode < http.StatusInternalServerError {
			alive = true
			return
		}
		p.logger.Debug("website probe failed", zap.String("url", url), zap.Error(err))
	})

	if err := collector.Visit(url); err != nil {
		p.logger.Debug("website probe rejected", zap.String("url", url), zap.Error(err))
		return alive
	}
	collector.Wait()
	return alive
}
