package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// UserRole
// ──────────────────────────────────────────────────────────────────────────────

// UserRole controls access levels in the back-office.
type UserRole string

const (
	RoleUser     UserRole = "user"     // standard bettor
	RoleAdmin    UserRole = "admin"    // full back-office access, may settle bets
	RoleFinance  UserRole = "finance"  // may credit accounts and fund the house
	RoleReadOnly UserRole = "readonly" // read-only back-office access
)

// CanAccessBackoffice returns true for all non-standard roles.
func (r UserRole) CanAccessBackoffice() bool {
	return r != RoleUser && r != ""
}

// CanMoveFunds returns true for roles allowed to settle bets or adjust balances.
func (r UserRole) CanMoveFunds() bool {
	return r == RoleAdmin || r == RoleFinance
}

// ──────────────────────────────────────────────────────────────────────────────
// User
// ──────────────────────────────────────────────────────────────────────────────

// User is the identity record behind an Account. Credentials live here so the
// account row holds nothing but money.
type User struct {
	Username     string    `json:"username"   db:"username"`
	PasswordHash string    `json:"-"          db:"password_hash"` // never serialised
	Role         UserRole  `json:"role"       db:"role"`
	IsActive     bool      `json:"is_active"  db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Account
// ──────────────────────────────────────────────────────────────────────────────

// Account holds a user's spendable balance. Balance is never negative.
type Account struct {
	Username  string          `json:"username"   db:"username"   validate:"required,min=3,max=50"`
	Balance   decimal.Decimal `json:"balance"    db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// CanCover reports whether the balance is at least amount.
func (a *Account) CanCover(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// ──────────────────────────────────────────────────────────────────────────────
// HoldingState
// ──────────────────────────────────────────────────────────────────────────────

// HoldingState is the system-wide escrow aggregate: stakes of open bets sit in
// HoldingBalance, the bookmaker's own money in HouseBalance.
type HoldingState struct {
	HoldingBalance decimal.Decimal `json:"holding_balance" db:"holding_balance"`
	HouseBalance   decimal.Decimal `json:"house_balance"   db:"house_balance"`
	UpdatedAt      time.Time       `json:"updated_at"      db:"updated_at"`
}
