package core

// scheduler.go runs the daily expiry sweep. Each run marks records whose
// expiry date has passed, one bulk update per schema with an ExpiryRule.
// A failed run is logged and retried at the next tick; it never stops the
// application.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultExpirySpec runs the sweep every day at midnight.
const DefaultExpirySpec = "0 0 * * *"

// SchedulerConfig holds configuration for the expiry scheduler.
type SchedulerConfig struct {
	Spec       string         // standard 5-field cron expression (default: midnight)
	Location   *time.Location // time zone of Spec (default: UTC)
	RunAtStart bool           // also sweep once immediately
}

// StartExpiryScheduler starts the sweep in the background. It stops when
// ctx is cancelled, waiting for a running sweep to finish.
func (s *Service) StartExpiryScheduler(ctx context.Context, cfg SchedulerConfig) (*cron.Cron, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultExpirySpec
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	c := cron.New(cron.WithLocation(cfg.Location))
	if _, err := c.AddFunc(cfg.Spec, func() { s.runExpiryJob(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid expiry schedule %q: %w", cfg.Spec, err)
	}

	slog.Info("expiry scheduler started", "spec", cfg.Spec, "time_zone", cfg.Location.String())
	if cfg.RunAtStart {
		go s.runExpiryJob(ctx)
	}
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		slog.Info("expiry scheduler stopped")
	}()
	return c, nil
}

// runExpiryJob performs one sweep.
func (s *Service) runExpiryJob(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	n, err := s.ExpireDue(ctx)
	if err != nil {
		slog.Error("expiry sweep failed", "expired", n, "error", err)
		return
	}
	slog.Info("expiry sweep completed",
		"expired", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
