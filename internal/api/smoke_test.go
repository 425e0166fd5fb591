// Package api_test runs HTTP-level tests against the real router backed by a
// throwaway SQLite database. They cover:
//   - routing and middleware wiring
//   - request validation (400) and the error envelope
//   - JWT auth (401 without or with a bad token)
//   - the full register, place bet, read back path
//   - CORS preflight handling
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evetabi/sportsbook/internal/api"
	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/repository"
	"github.com/evetabi/sportsbook/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func testCfg() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Env:  "development",
			Port: "8080",
		},
		JWT: config.JWTConfig{
			AccessSecret: "test-access-secret-abcdefghijklmnop",
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   30 * 24 * time.Hour,
		},
		Ledger: config.LedgerConfig{
			StartingBalance: decimal.NewFromInt(100),
			MatchupTimeout:  time.Second,
		},
	}
}

type fakeGames struct {
	games []domain.GameQuote
	err   error
}

func (f fakeGames) Games(_ context.Context, _, _ string) ([]domain.GameQuote, error) {
	return f.games, f.err
}

// buildTestRouter wires the router over real services and a fresh database.
func buildTestRouter(t *testing.T, games fakeGames) http.Handler {
	t.Helper()
	cfg := testCfg()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db, err := repository.Open(ctx, repository.Options{
		Driver: repository.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := repository.NewAccountRepository(db)
	stores := service.Stores{
		DB:       db,
		Accounts: accounts,
		Holding:  repository.NewHoldingRepository(db),
		Bets:     repository.NewBetRepository(db),
	}
	authSvc := service.NewAuthService(db, repository.NewUserRepository(db), accounts, cfg, zap.NewNop())
	ledger := service.NewLedgerService(stores, service.NewKeyedMutex(), &cfg.Ledger, zap.NewNop())

	return api.SetupRouter(ctx, api.RouterDeps{
		AuthSvc:   authSvc,
		LedgerSvc: ledger,
		Games:     games,
		Cfg:       cfg,
		Log:       zap.NewNop(),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("response is not valid JSON: %v, body: %s", err, rr.Body.String())
	}
	return m
}

func data(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	d, ok := decodeBody(t, rr)["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("no data object in %s", rr.Body.String())
	}
	return d
}

// register creates username over HTTP and returns its bearer header.
func register(t *testing.T, h http.Handler, username string) map[string]string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/auth/register",
		`{"username":"`+username+`","password":"password123"}`, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s = %d: %s", username, rr.Code, rr.Body.String())
	}
	token, _ := data(t, rr)["access_token"].(string)
	if token == "" {
		t.Fatal("register returned no access token")
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func money(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	if !ok {
		t.Fatalf("money field is %T, want string", v)
	}
	return decimal.RequireFromString(s)
}

// ── /health ───────────────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	rr := do(t, h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

// ── Auth endpoints, validation layer ──────────────────────────────────────────

func TestRegister_Validation(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	cases := map[string]string{
		"empty":          `{}`,
		"short password": `{"username":"alice","password":"short"}`,
		"bad username":   `{"username":"a b!","password":"password123"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/auth/register", payload, nil)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("register = %d, want 400", rr.Code)
			}
			body := decodeBody(t, rr)
			if body["success"] != false || body["code"] != "ERR_VALIDATION" {
				t.Errorf("envelope = %v", body)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	register(t, h, "alice")
	rr := do(t, h, http.MethodPost, "/api/auth/register", `{"username":"alice","password":"password123"}`, nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", rr.Code)
	}
}

func TestLogin(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	register(t, h, "alice")

	rr := do(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"password123"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong-password"}`, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/api/auth/login", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty login = %d, want 400", rr.Code)
	}
}

// ── JWT auth middleware ───────────────────────────────────────────────────────

func TestProtectedRoutes_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodGet, "/api/bets/me"},
		{http.MethodPost, "/api/bets"},
		{http.MethodGet, "/api/bets/11111111-1111-1111-1111-111111111111"},
	}
	for _, r := range routes {
		rr := do(t, h, r.method, r.path, `{}`, nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token = %d, want 401", r.method, r.path, rr.Code)
		}
	}
}

func TestPlaceBet_InvalidToken_Returns401(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	// well-formed header and payload, wrong signature
	fakeJWT := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9" +
		".eyJzdWIiOiJhbGljZSIsInJvbGUiOiJ1c2VyIiwidHlwZSI6ImFjY2VzcyJ9" +
		".BADSIG"
	rr := do(t, h, http.MethodPost, "/api/bets", `{}`, map[string]string{
		"Authorization": "Bearer " + fakeJWT,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/bets with invalid JWT = %d, want 401", rr.Code)
	}
}

// ── Bets ──────────────────────────────────────────────────────────────────────

func TestPlaceBet_FullPath(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	alice := register(t, h, "alice")

	rr := do(t, h, http.MethodPost, "/api/bets",
		`{"game_id":"g1","team":"Lakers","bet_type":"moneyline","odds":-110,"amount":"55.00"}`, alice)
	if rr.Code != http.StatusCreated {
		t.Fatalf("place bet = %d: %s", rr.Code, rr.Body.String())
	}
	placed := data(t, rr)
	if got := money(t, placed["balance"]); !got.Equal(decimal.NewFromInt(45)) {
		t.Errorf("balance = %s, want 45", got)
	}
	bet := placed["bet"].(map[string]interface{})
	if got := money(t, bet["potential_payout"]); !got.Equal(decimal.NewFromInt(105)) {
		t.Errorf("potential payout = %s, want 105", got)
	}
	if bet["user"] != "alice" || bet["matchup"] != domain.UnknownMatchup {
		t.Errorf("bet = %v", bet)
	}
	betID := bet["id"].(string)

	rr = do(t, h, http.MethodGet, "/api/me", "", alice)
	if got := money(t, data(t, rr)["balance"]); !got.Equal(decimal.NewFromInt(45)) {
		t.Errorf("GET /api/me balance = %s, want 45", got)
	}

	rr = do(t, h, http.MethodGet, "/api/bets/me", "", alice)
	if n := len(decodeBody(t, rr)["data"].([]interface{})); n != 1 {
		t.Errorf("GET /api/bets/me returned %d bets, want 1", n)
	}

	rr = do(t, h, http.MethodGet, "/api/bets/"+betID, "", alice)
	if rr.Code != http.StatusOK {
		t.Errorf("owner GET bet = %d, want 200", rr.Code)
	}

	bob := register(t, h, "bob")
	rr = do(t, h, http.MethodGet, "/api/bets/"+betID, "", bob)
	if rr.Code != http.StatusForbidden {
		t.Errorf("non-owner GET bet = %d, want 403", rr.Code)
	}
}

func TestPlaceBet_Rejections(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	alice := register(t, h, "alice")

	cases := []struct {
		name, payload string
		status        int
		code          string
	}{
		{"over stake", `{"game_id":"g1","team":"Lakers","bet_type":"moneyline","odds":150,"amount":"100.01"}`,
			http.StatusBadRequest, "ERR_INSUFFICIENT_FUNDS"},
		{"zero amount", `{"game_id":"g1","team":"Lakers","bet_type":"moneyline","odds":150,"amount":"0"}`,
			http.StatusBadRequest, "ERR_INVALID_AMOUNT"},
		{"sub-cent amount", `{"game_id":"g1","team":"Lakers","bet_type":"moneyline","odds":-100000,"amount":"1.001"}`,
			http.StatusBadRequest, "ERR_INVALID_AMOUNT"},
		{"zero odds", `{"game_id":"g1","team":"Lakers","bet_type":"moneyline","odds":0,"amount":"10"}`,
			http.StatusBadRequest, "ERR_INVALID_ODDS"},
		{"bad bet type", `{"game_id":"g1","team":"Lakers","bet_type":"parlay","odds":150,"amount":"10"}`,
			http.StatusBadRequest, "ERR_INVALID_BET_TYPE"},
		{"missing team", `{"game_id":"g1","bet_type":"moneyline","odds":150,"amount":"10"}`,
			http.StatusBadRequest, "ERR_VALIDATION"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/bets", tc.payload, alice)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tc.status, rr.Body.String())
			}
			if code := decodeBody(t, rr)["code"]; code != tc.code {
				t.Errorf("code = %v, want %s", code, tc.code)
			}
		})
	}

	rr := do(t, h, http.MethodGet, "/api/me", "", alice)
	if got := money(t, data(t, rr)["balance"]); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("balance after rejections = %s, want 100", got)
	}
}

func TestGetBet_BadID(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	alice := register(t, h, "alice")
	rr := do(t, h, http.MethodGet, "/api/bets/not-a-uuid", "", alice)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("GET bad id = %d, want 400", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/api/bets/11111111-1111-1111-1111-111111111111", "", alice)
	if rr.Code != http.StatusNotFound {
		t.Errorf("GET unknown bet = %d, want 404", rr.Code)
	}
}

// ── Games ─────────────────────────────────────────────────────────────────────

func TestGames_IsPublic(t *testing.T) {
	h := buildTestRouter(t, fakeGames{games: []domain.GameQuote{{ID: "g1", Teams: []string{"A", "B"}}}})
	rr := do(t, h, http.MethodGet, "/api/games", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /api/games = %d, want 200", rr.Code)
	}
	if n := len(decodeBody(t, rr)["data"].([]interface{})); n != 1 {
		t.Errorf("games = %d, want 1", n)
	}
}

func TestGames_UpstreamDown(t *testing.T) {
	h := buildTestRouter(t, fakeGames{err: domain.ErrUpstreamUnavailable})
	rr := do(t, h, http.MethodGet, "/api/games", "", nil)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("GET /api/games upstream down = %d, want 502", rr.Code)
	}
}

// ── CORS headers ──────────────────────────────────────────────────────────────

func TestCORSOptionsRequest(t *testing.T) {
	h := buildTestRouter(t, fakeGames{})
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("OPTIONS /api/auth/login = %d, want 204", rr.Code)
	}
	if allow := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(allow, "POST") {
		t.Errorf("Access-Control-Allow-Methods missing POST, got %q", allow)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("dev CORS origin = %q, want *", origin)
	}
}
