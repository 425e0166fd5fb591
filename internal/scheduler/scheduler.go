// Package scheduler runs the background jobs of the API process. Today that
// is one job: keeping the odds cache warm so bet placement finds matchups
// without a round-trip to the upstream feed.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OddsRefresher is implemented by odds.Provider.
type OddsRefresher interface {
	Refresh(ctx context.Context, sport, bookmaker string) ([]domain.GameQuote, error)
}

// OddsBroadcaster is implemented by ws.Hub. Declared here so the scheduler
// does not import the hub.
type OddsBroadcaster interface {
	BroadcastOddsUpdated(sport string, games int)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	odds   OddsRefresher
	hub    OddsBroadcaster
	cfg    *config.OddsConfig
	logger *zap.Logger

	ctx context.Context
}

// NewScheduler creates a Scheduler. hub may be nil.
func NewScheduler(ctx context.Context, odds OddsRefresher, hub OddsBroadcaster, cfg *config.OddsConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		odds:   odds,
		hub:    hub,
		cfg:    cfg,
		logger: logger.Named("scheduler"),
		ctx:    ctx,
	}
}

// RegisterAll adds the warm-up job on cfg.RefreshCron.
func (s *Scheduler) RegisterAll() error {
	if _, err := s.cron.AddFunc(s.cfg.RefreshCron, s.warmOdds); err != nil {
		return fmt.Errorf("register odds warm-up %q: %w", s.cfg.RefreshCron, err)
	}
	return nil
}

// Start starts the cron runner. It returns immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("odds_cron", s.cfg.RefreshCron))
}

// Stop stops the runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow warms the cache immediately, e.g. at startup.
func (s *Scheduler) RunNow() {
	s.warmOdds()
}

// warmOdds refreshes every configured sport for the default bookmaker. One
// failing sport does not stop the others.
func (s *Scheduler) warmOdds() {
	for _, sport := range s.cfg.WarmSports {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.FetchTimeout+time.Second)
		quotes, err := s.odds.Refresh(ctx, sport, s.cfg.DefaultBookmaker)
		cancel()
		if err != nil {
			s.logger.Warn("odds warm-up failed", zap.String("sport", sport), zap.Error(err))
			continue
		}
		s.logger.Debug("odds warmed", zap.String("sport", sport), zap.Int("games", len(quotes)))
		if s.hub != nil {
			s.hub.BroadcastOddsUpdated(sport, len(quotes))
		}
	}
}
