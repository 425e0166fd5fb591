package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/evetabi/sportsbook/internal/config"
	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/evetabi/sportsbook/internal/repository"
	"github.com/evetabi/sportsbook/internal/service"
	"go.uber.org/zap"
)

func newAuth(t *testing.T, h *harness, starting string) *service.AuthService {
	t.Helper()
	cfg := &config.Config{
		JWT: config.JWTConfig{
			AccessSecret: "test-secret",
			AccessTTL:    15 * time.Minute,
			RefreshTTL:   time.Hour,
		},
		Ledger: config.LedgerConfig{
			StartingBalance: dec(starting),
			MatchupTimeout:  time.Second,
		},
	}
	return service.NewAuthService(h.db, repository.NewUserRepository(h.db), h.accounts, cfg, zap.NewNop())
}

// TestRegisterLoginOverStake walks the full user path: a fresh account can
// not stake more than it was granted and the failed attempt leaves it intact.
func TestRegisterLoginOverStake(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(t, h, "100")
	ctx := context.Background()

	reg, err := auth.Register(ctx, service.RegisterRequest{Username: "alice", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.AccessToken == "" || reg.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if reg.User.PasswordHash == "correct-horse" {
		t.Fatal("password stored in clear")
	}

	login, err := auth.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := auth.ParseAccessToken(login.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != string(domain.RoleUser) {
		t.Errorf("claims = %+v", claims)
	}

	_, err = h.ledger.PlaceBet(ctx, claims.Subject, moneyline("100.01", 120))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("over-stake: want ErrInsufficientFunds, got %v", err)
	}
	assertMoney(t, "balance", h.balance(t, "alice"), "100")
}

func TestRegister_DuplicateUsername(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(t, h, "0")
	ctx := context.Background()

	if _, err := auth.Register(ctx, service.RegisterRequest{Username: "alice", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	_, err := auth.Register(ctx, service.RegisterRequest{Username: "alice", Password: "password2"})
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("want ErrUsernameTaken, got %v", err)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(t, h, "0")
	ctx := context.Background()

	if _, err := auth.Register(ctx, service.RegisterRequest{Username: "alice", Password: "password1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := auth.Login(ctx, "alice", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := auth.Login(ctx, "nobody", "password1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(t, h, "0")
	ctx := context.Background()

	reg, err := auth.Register(ctx, service.RegisterRequest{Username: "alice", Password: "password1"})
	if err != nil {
		t.Fatal(err)
	}

	access, refresh, err := auth.RefreshToken(ctx, reg.RefreshToken)
	if err != nil || access == "" || refresh == "" {
		t.Fatalf("RefreshToken: %v", err)
	}

	if _, _, err = auth.RefreshToken(ctx, reg.AccessToken); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("access token used as refresh: got %v", err)
	}
	if _, err = auth.ParseAccessToken(reg.RefreshToken); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("refresh token used as access: got %v", err)
	}
	if _, err = auth.ParseAccessToken("garbage"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("garbage token: got %v", err)
	}
}
