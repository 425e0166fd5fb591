package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/google/uuid"
)

// placeOpenBet funds the house, seeds alice with 1000 and places 100 at +150.
func placeOpenBet(t *testing.T, h *harness, house string) *domain.BetRecord {
	t.Helper()
	h.seedAccount(t, "alice", "1000")
	if house != "0" {
		if _, err := h.settle.FundHouse(context.Background(), dec(house)); err != nil {
			t.Fatalf("fund house: %v", err)
		}
	}
	res, err := h.ledger.PlaceBet(context.Background(), "alice", moneyline("100", 150))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	return res.Bet
}

func TestResolveBet_MoneyFlows(t *testing.T) {
	cases := []struct {
		outcome  domain.BetOutcome
		credited string
		balance  string
		house    string
	}{
		{domain.OutcomeWon, "250", "1150", "850"},
		{domain.OutcomeLost, "0", "900", "1100"},
		{domain.OutcomePush, "100", "1000", "1000"},
	}

	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			h := newHarness(t)
			bet := placeOpenBet(t, h, "1000")

			res, err := h.settle.ResolveBet(context.Background(), bet.ID, tc.outcome)
			if err != nil {
				t.Fatalf("ResolveBet: %v", err)
			}

			assertMoney(t, "credited", res.Credited, tc.credited)
			assertMoney(t, "result balance", res.Balance, tc.balance)
			assertMoney(t, "stored balance", h.balance(t, "alice"), tc.balance)

			state := h.holdingState(t)
			assertMoney(t, "holding", state.HoldingBalance, "0")
			assertMoney(t, "house", state.HouseBalance, tc.house)
			assertMoney(t, "result house", res.Holding.HouseBalance, tc.house)

			// Money is conserved: account + escrow + house is unchanged.
			total := h.balance(t, "alice").Add(state.HoldingBalance).Add(state.HouseBalance)
			assertMoney(t, "total", total, "2000")

			stored, err := h.bets.GetByID(context.Background(), bet.ID)
			if err != nil {
				t.Fatal(err)
			}
			if !stored.Resolved || stored.Outcome == nil || *stored.Outcome != tc.outcome {
				t.Errorf("stored bet = resolved %v outcome %v", stored.Resolved, stored.Outcome)
			}
		})
	}
}

func TestResolveBet_HouseShortfallRollsBack(t *testing.T) {
	h := newHarness(t)
	bet := placeOpenBet(t, h, "100") // winnings are 150

	_, err := h.settle.ResolveBet(context.Background(), bet.ID, domain.OutcomeWon)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	assertMoney(t, "balance", h.balance(t, "alice"), "900")
	state := h.holdingState(t)
	assertMoney(t, "holding", state.HoldingBalance, "100")
	assertMoney(t, "house", state.HouseBalance, "100")

	stored, _ := h.bets.GetByID(context.Background(), bet.ID)
	if stored.Resolved {
		t.Error("bet must stay open after a failed settlement")
	}
}

func TestResolveBet_Twice(t *testing.T) {
	h := newHarness(t)
	bet := placeOpenBet(t, h, "1000")
	ctx := context.Background()

	if _, err := h.settle.ResolveBet(ctx, bet.ID, domain.OutcomeLost); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	_, err := h.settle.ResolveBet(ctx, bet.ID, domain.OutcomeWon)
	if !errors.Is(err, domain.ErrBetAlreadyResolved) {
		t.Fatalf("second resolve: want ErrBetAlreadyResolved, got %v", err)
	}
	if !domain.IsConflict(err) {
		t.Error("IsConflict should hold")
	}

	stored, _ := h.bets.GetByID(ctx, bet.ID)
	if *stored.Outcome != domain.OutcomeLost {
		t.Errorf("outcome changed to %s", *stored.Outcome)
	}
	assertMoney(t, "balance", h.balance(t, "alice"), "900")
}

func TestResolveBet_Errors(t *testing.T) {
	h := newHarness(t)
	bet := placeOpenBet(t, h, "1000")

	if _, err := h.settle.ResolveBet(context.Background(), bet.ID, "void"); !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Errorf("bad outcome: want ErrInvalidOutcome, got %v", err)
	}
	if _, err := h.settle.ResolveBet(context.Background(), uuid.New(), domain.OutcomeWon); !errors.Is(err, domain.ErrBetNotFound) {
		t.Errorf("missing bet: want ErrBetNotFound, got %v", err)
	}
}

func TestResolveBet_NotifiesOwner(t *testing.T) {
	h := newHarness(t)
	bet := placeOpenBet(t, h, "1000")
	n := newRecordingNotifier()
	h.settle.SetNotifier(n)

	if _, err := h.settle.ResolveBet(context.Background(), bet.ID, domain.OutcomePush); err != nil {
		t.Fatal(err)
	}
	got := waitFor(t, n.settled)
	if got.Bet.ID != bet.ID || *got.Bet.Outcome != domain.OutcomePush {
		t.Errorf("unexpected notification: %+v", got.Bet)
	}
}

func TestOperatorMovements(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "alice", "0")
	ctx := context.Background()

	bal, err := h.settle.CreditAccount(ctx, "alice", dec("42.10"))
	if err != nil {
		t.Fatalf("CreditAccount: %v", err)
	}
	assertMoney(t, "balance", bal, "42.10")

	if _, err = h.settle.CreditAccount(ctx, "alice", dec("0")); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero credit: want ErrInvalidAmount, got %v", err)
	}
	if _, err = h.settle.CreditAccount(ctx, "ghost", dec("1")); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("unknown account: want ErrAccountNotFound, got %v", err)
	}

	if err = h.settle.SeedHouse(ctx, dec("500")); err != nil {
		t.Fatalf("SeedHouse: %v", err)
	}
	// A second seed is a no-op once the house holds money.
	if err = h.settle.SeedHouse(ctx, dec("500")); err != nil {
		t.Fatalf("SeedHouse again: %v", err)
	}
	state, err := h.settle.HoldingState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assertMoney(t, "house", state.HouseBalance, "500")

	if _, err = h.settle.FundHouse(ctx, dec("-1")); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("negative fund: want ErrInvalidAmount, got %v", err)
	}
	if _, err = h.settle.FundHouse(ctx, dec("0.005")); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("sub-cent fund: want ErrInvalidAmount, got %v", err)
	}
	if _, err = h.settle.CreditAccount(ctx, "alice", dec("1.001")); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("sub-cent credit: want ErrInvalidAmount, got %v", err)
	}
	assertMoney(t, "balance after rejected credits", h.balance(t, "alice"), "42.10")
}

// A tiny stake at extreme odds keeps account + holding + house constant from
// placement through a winning settlement.
func TestResolveBet_TinyStakeConservesMoney(t *testing.T) {
	h := newHarness(t)
	h.seedAccount(t, "alice", "10")
	ctx := context.Background()
	if _, err := h.settle.FundHouse(ctx, dec("100")); err != nil {
		t.Fatal(err)
	}

	if _, err := h.ledger.PlaceBet(ctx, "alice", moneyline("1.001", -100000)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("sub-cent stake: want ErrInvalidAmount, got %v", err)
	}

	res, err := h.ledger.PlaceBet(ctx, "alice", moneyline("1.01", -100000))
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Bet.PotentialPayout.LessThan(res.Bet.Amount) {
		t.Fatalf("payout %s below stake %s", res.Bet.PotentialPayout, res.Bet.Amount)
	}
	if _, err = h.settle.ResolveBet(ctx, res.Bet.ID, domain.OutcomeWon); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	state := h.holdingState(t)
	total := h.balance(t, "alice").Add(state.HoldingBalance).Add(state.HouseBalance)
	assertMoney(t, "total", total, "110")
	assertMoney(t, "holding", state.HoldingBalance, "0")
}

func TestListBets_Operator(t *testing.T) {
	h := newHarness(t)
	bet := placeOpenBet(t, h, "1000")
	ctx := context.Background()

	bets, err := h.settle.ListAccountBets(ctx, "alice")
	if err != nil || len(bets) != 1 {
		t.Fatalf("ListAccountBets: %d bets, %v", len(bets), err)
	}
	if _, err = h.settle.ListAccountBets(ctx, "ghost"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("want ErrAccountNotFound, got %v", err)
	}

	open, err := h.settle.ListOpenBets(ctx, 10, 0)
	if err != nil || len(open) != 1 || open[0].ID != bet.ID {
		t.Fatalf("ListOpenBets before settle: %v, %v", open, err)
	}
	if _, err = h.settle.ResolveBet(ctx, bet.ID, domain.OutcomeLost); err != nil {
		t.Fatal(err)
	}
	open, _ = h.settle.ListOpenBets(ctx, 10, 0)
	if len(open) != 0 {
		t.Errorf("open bets after settle = %d, want 0", len(open))
	}
}

func TestExposure(t *testing.T) {
	h := newHarness(t)
	bet := placeOpenBet(t, h, "160")
	ctx := context.Background()
	if _, err := h.ledger.PlaceBet(ctx, "alice", moneyline("50", -200)); err != nil {
		t.Fatal(err)
	}

	e, err := h.settle.Exposure(ctx)
	if err != nil {
		t.Fatalf("Exposure: %v", err)
	}
	if e.OpenBets != 2 {
		t.Errorf("open bets = %d, want 2", e.OpenBets)
	}
	assertMoney(t, "staked", e.TotalStaked, "150")
	assertMoney(t, "worst case", e.WorstCaseLoss, "175") // 150 + 25
	if e.Covered {
		t.Error("160 house should not cover 175")
	}

	if _, err = h.settle.ResolveBet(ctx, bet.ID, domain.OutcomeLost); err != nil {
		t.Fatal(err)
	}
	e, _ = h.settle.Exposure(ctx)
	assertMoney(t, "worst case after settle", e.WorstCaseLoss, "25")
	assertMoney(t, "house after settle", e.HouseBalance, "260")
	if !e.Covered || e.OpenBets != 1 {
		t.Errorf("exposure after settle = %+v", e)
	}
}
