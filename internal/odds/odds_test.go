package odds_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/odds"
	"go.uber.org/zap"
)

// ── Mock upstream ─────────────────────────────────────────────────────────────

const sampleFeed = `[
  {
    "id": "g1",
    "sport_key": "basketball_nba",
    "commence_time": "2026-10-20T23:30:00Z",
    "home_team": "Los Angeles Lakers",
    "away_team": "Boston Celtics",
    "bookmakers": [
      {"key": "empty", "title": "Empty Book", "markets": []},
      {
        "key": "fanduel",
        "title": "FanDuel",
        "markets": [
          {"key": "h2h", "outcomes": [
            {"name": "Boston Celtics", "price": -150},
            {"name": "Los Angeles Lakers", "price": 130}
          ]},
          {"key": "spreads", "outcomes": [
            {"name": "Boston Celtics", "price": -110, "point": -3.5},
            {"name": "Los Angeles Lakers", "price": -110, "point": 3.5}
          ]},
          {"key": "totals", "outcomes": [
            {"name": "Over", "price": -105, "point": 221.5},
            {"name": "Under", "price": -115, "point": 221.5}
          ]}
        ]
      }
    ]
  },
  {
    "id": "g2",
    "commence_time": "2026-10-21T00:00:00Z",
    "bookmakers": []
  },
  {
    "id": "g3",
    "commence_time": "2026-10-21T01:00:00Z",
    "bookmakers": [
      {"key": "fanduel", "title": "FanDuel", "markets": [
        {"key": "totals", "outcomes": [{"name": "Over", "price": 100, "point": 200}]}
      ]}
    ]
  }
]`

func mockFeed(hits *int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		if r.URL.Query().Get("oddsFormat") != "american" {
			http.Error(w, "bad format", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleFeed))
	}))
}

func mockServerError() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
}

func testOddsConfig(baseURL string) *config.OddsConfig {
	return &config.OddsConfig{
		BaseURL:          baseURL,
		APIKey:           "test",
		DefaultSport:     "basketball_nba",
		DefaultBookmaker: "fanduel",
		Regions:          "us",
		Markets:          "h2h,spreads,totals",
		FetchTimeout:     2 * time.Second,
		CacheTTL:         time.Minute,
	}
}

// ── Client ────────────────────────────────────────────────────────────────────

func TestClient_Normalises(t *testing.T) {
	var hits int64
	srv := mockFeed(&hits)
	defer srv.Close()

	quotes, err := odds.NewClient(testOddsConfig(srv.URL)).FetchOdds(context.Background(), "basketball_nba", "fanduel")
	if err != nil {
		t.Fatalf("FetchOdds: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("want 2 games (g2 has no bookmaker), got %d", len(quotes))
	}

	g := quotes[0]
	if g.Bookmaker != "FanDuel" {
		t.Errorf("bookmaker = %q, want first bookmaker with markets", g.Bookmaker)
	}
	if len(g.Teams) != 2 || g.Teams[0] != "Boston Celtics" {
		t.Errorf("teams = %v", g.Teams)
	}
	if g.Moneyline[0].Price != -150 || g.Moneyline[0].Point != nil {
		t.Errorf("moneyline[0] = %+v", g.Moneyline[0])
	}
	if g.Spread[1].Point == nil || g.Spread[1].Point.String() != "3.5" {
		t.Errorf("spread point = %v, want 3.5", g.Spread[1].Point)
	}
	if len(g.Totals) != 2 {
		t.Errorf("totals = %d lines, want 2", len(g.Totals))
	}
	if g.Matchup() != "Boston Celtics vs Los Angeles Lakers" {
		t.Errorf("matchup = %q", g.Matchup())
	}

	if quotes[1].Matchup() != domain.UnknownMatchup {
		t.Errorf("game without h2h should be unknown, got %q", quotes[1].Matchup())
	}
}

func TestClient_UpstreamError(t *testing.T) {
	srv := mockServerError()
	defer srv.Close()

	_, err := odds.NewClient(testOddsConfig(srv.URL)).FetchOdds(context.Background(), "basketball_nba", "fanduel")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("want ErrUpstreamUnavailable, got %v", err)
	}
}

// ── Provider ──────────────────────────────────────────────────────────────────

func TestProvider_ReadThrough(t *testing.T) {
	var hits int64
	srv := mockFeed(&hits)
	defer srv.Close()

	cfg := testOddsConfig(srv.URL)
	p := odds.NewProvider(odds.NewClient(cfg), odds.NewMemoryCache(), cfg, zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := p.Games(context.Background(), "", ""); err != nil {
			t.Fatalf("Games: %v", err)
		}
	}
	if atomic.LoadInt64(&hits) != 1 {
		t.Errorf("upstream hit %d times, want 1", hits)
	}
}

func TestProvider_LookupMatchup(t *testing.T) {
	var hits int64
	srv := mockFeed(&hits)
	defer srv.Close()

	cfg := testOddsConfig(srv.URL)
	p := odds.NewProvider(odds.NewClient(cfg), odds.NewMemoryCache(), cfg, zap.NewNop())
	ctx := context.Background()

	label, err := p.LookupMatchup(ctx, "g1")
	if err != nil || label != "Boston Celtics vs Los Angeles Lakers" {
		t.Fatalf("g1: got %q, %v", label, err)
	}

	label, err = p.LookupMatchup(ctx, "nope")
	if err != nil || label != domain.UnknownMatchup {
		t.Fatalf("unknown game: got %q, %v", label, err)
	}

	// Both lookups after the first are served from the cache.
	if _, err = p.LookupMatchup(ctx, "g1"); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt64(&hits) != 1 {
		t.Errorf("upstream hit %d times, want 1", hits)
	}
}

func TestProvider_LookupMatchupUpstreamDown(t *testing.T) {
	srv := mockServerError()
	defer srv.Close()

	cfg := testOddsConfig(srv.URL)
	p := odds.NewProvider(odds.NewClient(cfg), odds.NewMemoryCache(), cfg, zap.NewNop())

	label, err := p.LookupMatchup(context.Background(), "g1")
	if label != domain.UnknownMatchup {
		t.Errorf("label = %q, want fallback", label)
	}
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("want ErrUpstreamUnavailable, got %v", err)
	}
}

// ── MemoryCache ───────────────────────────────────────────────────────────────

func TestMemoryCache_Expiry(t *testing.T) {
	c := odds.NewMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	var got string
	if found, err := c.Get(ctx, "k", &got); !found || err != nil || got != "v" {
		t.Fatalf("fresh get: found=%v err=%v got=%q", found, err, got)
	}

	time.Sleep(40 * time.Millisecond)
	if found, _ := c.Get(ctx, "k", &got); found {
		t.Error("expected entry to expire")
	}
}
