// Package odds fetches game quotes from the-odds-api and keeps them in a
// read-through cache so bet placement never waits on the upstream feed.
package odds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/shopspring/decimal"
)

// Fetcher is anything that can produce normalised quotes for a sport.
type Fetcher interface {
	FetchOdds(ctx context.Context, sport, bookmaker string) ([]domain.GameQuote, error)
}

// Client talks to the-odds-api v4.
type Client struct {
	http *http.Client
	cfg  *config.OddsConfig
}

// NewClient constructs a Client from the odds config section.
func NewClient(cfg *config.OddsConfig) *Client {
	return &Client{
		http: &http.Client{Timeout: cfg.FetchTimeout},
		cfg:  cfg,
	}
}

// ── upstream wire format ──────────────────────────────────────────────────────

type rawOutcome struct {
	Name  string           `json:"name"`
	Price float64          `json:"price"`
	Point *decimal.Decimal `json:"point"`
}

type rawMarket struct {
	Key      string       `json:"key"`
	Outcomes []rawOutcome `json:"outcomes"`
}

type rawBookmaker struct {
	Key     string      `json:"key"`
	Title   string      `json:"title"`
	Markets []rawMarket `json:"markets"`
}

type rawGame struct {
	ID           string         `json:"id"`
	SportKey     string         `json:"sport_key"`
	CommenceTime time.Time      `json:"commence_time"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Bookmakers   []rawBookmaker `json:"bookmakers"`
}

// FetchOdds returns the games of sport priced by bookmaker. Any transport
// failure or non-200 answer is reported as ErrUpstreamUnavailable.
func (c *Client) FetchOdds(ctx context.Context, sport, bookmaker string) ([]domain.GameQuote, error) {
	q := url.Values{}
	q.Set("apiKey", c.cfg.APIKey)
	q.Set("regions", c.cfg.Regions)
	q.Set("markets", c.cfg.Markets)
	q.Set("oddsFormat", "american")
	q.Set("bookmakers", bookmaker)
	endpoint := fmt.Sprintf("%s/v4/sports/%s/odds/?%s", c.cfg.BaseURL, url.PathEscape(sport), q.Encode())

	body, err := c.doGet(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("odds.FetchOdds %s: %w: %v", sport, domain.ErrUpstreamUnavailable, err)
	}

	var games []rawGame
	if err = json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("odds.FetchOdds %s: %w: decode: %v", sport, domain.ErrUpstreamUnavailable, err)
	}
	return normalise(games), nil
}

// normalise keeps, per game, the first bookmaker that actually has markets.
// Games without any priced bookmaker are dropped.
func normalise(games []rawGame) []domain.GameQuote {
	quotes := make([]domain.GameQuote, 0, len(games))
	for _, g := range games {
		var book *rawBookmaker
		for i := range g.Bookmakers {
			if len(g.Bookmakers[i].Markets) > 0 {
				book = &g.Bookmakers[i]
				break
			}
		}
		if book == nil {
			continue
		}

		markets := make(map[string][]domain.OddsLine, len(book.Markets))
		for _, m := range book.Markets {
			lines := make([]domain.OddsLine, 0, len(m.Outcomes))
			for _, o := range m.Outcomes {
				lines = append(lines, domain.OddsLine{
					Name:  o.Name,
					Price: int(math.Round(o.Price)),
					Point: o.Point,
				})
			}
			markets[m.Key] = lines
		}

		teams := make([]string, 0, 2)
		for _, l := range markets["h2h"] {
			teams = append(teams, l.Name)
		}

		quotes = append(quotes, domain.GameQuote{
			ID:           g.ID,
			Teams:        teams,
			CommenceTime: g.CommenceTime,
			Bookmaker:    book.Title,
			Moneyline:    orEmpty(markets["h2h"]),
			Spread:       orEmpty(markets["spreads"]),
			Totals:       orEmpty(markets["totals"]),
		})
	}
	return quotes
}

func orEmpty(lines []domain.OddsLine) []domain.OddsLine {
	if lines == nil {
		return []domain.OddsLine{}
	}
	return lines
}

// doGet performs an HTTP GET and returns the body bytes, or an error for any
// non-200 status code.
func (c *Client) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "evetabi-sportsbook/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
