// Package scheduler wires up the cron jobs that keep every enabled user's
// project list fresh and their marketplace session alive.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/avoss/projectwarden/internal/config"
	svcErr "github.com/avoss/projectwarden/internal/errors"
)

// SyncService is the slice of the sync service the scheduler drives.
type SyncService interface {
	EnabledUsers(ctx context.Context) ([]string, error)
	UsersDueRefresh(ctx context.Context) ([]string, error)
	SyncStored(ctx context.Context, userID string, forceRefresh bool) error
	KeepAlive(ctx context.Context, userID string) error
}

// Scheduler wraps robfig/cron and manages the periodic refresh and
// keep-alive loops.
type Scheduler struct {
	cron    *cron.Cron
	svc     SyncService
	log     *slog.Logger
	refresh string
	ping    string
}

// New creates a Scheduler from the sync intervals in config.
func New(svc SyncService, cfg config.SyncConfig, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		svc:     svc,
		log:     log.With("component", "scheduler"),
		refresh: fmt.Sprintf("@every %s", cfg.RefreshInterval),
		ping:    fmt.Sprintf("@every %s", cfg.KeepAliveInterval),
	}
}

// Start registers the jobs and starts the scheduler. Also runs one refresh
// cycle immediately so new credentials are picked up without waiting for
// the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.refresh, func() { s.runRefresh(ctx) }); err != nil {
		return fmt.Errorf("register refresh job: %w", err)
	}
	if _, err := s.cron.AddFunc(s.ping, func() { s.runKeepAlive(ctx) }); err != nil {
		return fmt.Errorf("register keep-alive job: %w", err)
	}

	s.cron.Start()
	s.log.Info("scheduler started", "refresh", s.refresh, "keep_alive", s.ping)

	go s.runRefresh(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("scheduler stopped")
}

// runRefresh starts a background sync for every enabled user whose cache
// has gone stale. A user whose previous run is still in flight is skipped,
// not queued.
func (s *Scheduler) runRefresh(ctx context.Context) {
	users, err := s.svc.UsersDueRefresh(ctx)
	if err != nil {
		s.log.Error("refresh cycle aborted, cannot list users", "err", err)
		return
	}
	if len(users) == 0 {
		s.log.Debug("refresh cycle idle, every cache is fresh")
		return
	}

	s.log.Info("refresh cycle started", "users", len(users))
	for _, userID := range users {
		err := s.svc.SyncStored(ctx, userID, true)
		switch {
		case err == nil:
		case svcErr.IsKind(err, svcErr.KindFailedPrecondition):
			s.log.Debug("sync already running, skipped", "user_id", userID)
		default:
			s.log.Warn("sync start failed", "user_id", userID, "err", err)
		}
	}
}

// runKeepAlive pings the marketplace session of every enabled user.
func (s *Scheduler) runKeepAlive(ctx context.Context) {
	users, err := s.svc.EnabledUsers(ctx)
	if err != nil {
		s.log.Error("keep-alive cycle aborted, cannot list users", "err", err)
		return
	}

	for _, userID := range users {
		if err := s.svc.KeepAlive(ctx, userID); err != nil {
			s.log.Warn("keep-alive failed", "user_id", userID, "err", err)
		}
	}
}
