package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

const (
	tokenCleanupSpec = "@every 1h"
	examCloseSpec    = "@every 1m"
	jobTimeout       = 30 * time.Second
)

// Scheduler runs the periodic maintenance jobs
type Scheduler struct {
	cron   *cron.Cron
	repo   repositories.Repository
	logger *slog.Logger
	now    func() time.Time
}

func New(repo repositories.Repository, logger *slog.Logger) *Scheduler {
	cl := cronLogger{l: logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(tokenCleanupSpec, s.run("purge_refresh_tokens", s.PurgeRefreshTokens)); err != nil {
		return fmt.Errorf("failed to schedule token cleanup: %w", err)
	}
	if _, err := s.cron.AddFunc(examCloseSpec, s.run("close_expired_exams", s.CloseExpiredExams)); err != nil {
		return fmt.Errorf("failed to schedule exam closing: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop waits for running jobs or until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
	}
}

func (s *Scheduler) run(name string, job func(ctx context.Context) (int64, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		n, err := job(ctx)
		if err != nil {
			s.logger.Error("Scheduled job failed", "job", name, "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("Scheduled job finished", "job", name, "affected", n, "duration", time.Since(start).String())
		}
	}
}

// PurgeRefreshTokens deletes expired and revoked refresh tokens
func (s *Scheduler) PurgeRefreshTokens(ctx context.Context) (int64, error) {
	return s.repo.RefreshToken().DeleteStale(ctx, nil, s.now())
}

// CloseExpiredExams closes published exams whose availability window has ended
func (s *Scheduler) CloseExpiredExams(ctx context.Context) (int64, error) {
	return s.repo.Exam().CloseExpired(ctx, nil, s.now())
}

type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
