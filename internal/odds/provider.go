package odds

import (
	"context"
	"fmt"

	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/domain"
	"go.uber.org/zap"
)

func gamesKey(sport, bookmaker string) string { return "odds:games:" + sport + ":" + bookmaker }
func matchupKey(gameID string) string         { return "odds:matchup:" + gameID }

// Provider serves quotes from the cache and falls through to the upstream
// feed on a miss.
type Provider struct {
	fetcher Fetcher
	cache   Cache
	cfg     *config.OddsConfig
	log     *zap.Logger
}

// NewProvider wires a fetcher to a cache.
func NewProvider(fetcher Fetcher, cache Cache, cfg *config.OddsConfig, log *zap.Logger) *Provider {
	return &Provider{fetcher: fetcher, cache: cache, cfg: cfg, log: log}
}

// Games returns the quotes for sport/bookmaker. Empty arguments fall back to
// the configured defaults.
func (p *Provider) Games(ctx context.Context, sport, bookmaker string) ([]domain.GameQuote, error) {
	if sport == "" {
		sport = p.cfg.DefaultSport
	}
	if bookmaker == "" {
		bookmaker = p.cfg.DefaultBookmaker
	}

	var quotes []domain.GameQuote
	found, err := p.cache.Get(ctx, gamesKey(sport, bookmaker), &quotes)
	if err != nil {
		// A broken cache must not take the feed down with it.
		p.log.Warn("odds cache read failed", zap.String("sport", sport), zap.Error(err))
	}
	if found {
		return quotes, nil
	}
	return p.Refresh(ctx, sport, bookmaker)
}

// Refresh fetches from upstream unconditionally and repopulates the cache,
// including one matchup entry per game.
func (p *Provider) Refresh(ctx context.Context, sport, bookmaker string) ([]domain.GameQuote, error) {
	quotes, err := p.fetcher.FetchOdds(ctx, sport, bookmaker)
	if err != nil {
		return nil, err
	}

	if err = p.cache.Set(ctx, gamesKey(sport, bookmaker), quotes, p.cfg.CacheTTL); err != nil {
		p.log.Warn("odds cache write failed", zap.String("sport", sport), zap.Error(err))
	}
	for i := range quotes {
		if err = p.cache.Set(ctx, matchupKey(quotes[i].ID), quotes[i].Matchup(), p.cfg.CacheTTL); err != nil {
			p.log.Warn("matchup cache write failed", zap.String("game_id", quotes[i].ID), zap.Error(err))
			break
		}
	}
	return quotes, nil
}

// LookupMatchup names the game gameID as "<a> vs <b>". Unknown games yield
// UnknownMatchup with a nil error; an unreachable feed yields UnknownMatchup
// together with the upstream error so callers can count the fallback.
func (p *Provider) LookupMatchup(ctx context.Context, gameID string) (string, error) {
	var label string
	if found, _ := p.cache.Get(ctx, matchupKey(gameID), &label); found && label != "" {
		return label, nil
	}

	quotes, err := p.Games(ctx, p.cfg.DefaultSport, p.cfg.DefaultBookmaker)
	if err != nil {
		return domain.UnknownMatchup, fmt.Errorf("odds.LookupMatchup: %w", err)
	}
	for i := range quotes {
		if quotes[i].ID == gameID {
			return quotes[i].Matchup(), nil
		}
	}
	return domain.UnknownMatchup, nil
}
