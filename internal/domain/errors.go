package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors, compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Account / holding errors
var (
	// ErrAccountNotFound is returned when no account exists for a username.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds is returned when a debit would take an account, the
	// holding balance, or the house balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero or negative money amounts, and for
	// amounts finer than a cent.
	ErrInvalidAmount = errors.New("amount must be positive with at most 2 decimal places")
)

// Bet errors
var (
	// ErrBetNotFound is returned when no bet matches the given ID.
	ErrBetNotFound = errors.New("bet not found")

	// ErrBetAlreadyResolved is returned when trying to re-resolve a bet.
	ErrBetAlreadyResolved = errors.New("bet is already resolved")

	// ErrInvalidOdds is returned for American odds of zero.
	ErrInvalidOdds = errors.New("invalid odds: american odds cannot be zero")

	// ErrInvalidBetType is returned when bet_type is not moneyline, spread or total.
	ErrInvalidBetType = errors.New("invalid bet type: must be moneyline, spread or total")

	// ErrInvalidOutcome is returned when a settlement outcome is not won, lost or push.
	ErrInvalidOutcome = errors.New("invalid outcome: must be won, lost or push")

	// ErrInvalidRecord is returned when a record fails validation at the store boundary.
	ErrInvalidRecord = errors.New("record failed validation")
)

// Infrastructure errors
var (
	// ErrPersistence wraps any storage failure inside the placement or
	// settlement transaction. The transaction is always rolled back first.
	ErrPersistence = errors.New("persistence failure")

	// ErrUpstreamUnavailable is returned by the odds provider when the feed
	// cannot be reached or answers with a non-200 status.
	ErrUpstreamUnavailable = errors.New("odds provider unavailable")
)

// User / auth errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned on registration when the username already exists.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserInactive is returned when a suspended user attempts an action.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenInvalid is returned when a token cannot be parsed, has expired, or
	// its signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound can stay in sync automatically.
var notFoundErrors = []error{
	ErrAccountNotFound,
	ErrBetNotFound,
	ErrUserNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict (e.g.
// duplicate registration or double-resolution).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrUsernameTaken,
		ErrBetAlreadyResolved,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation returns true for errors caused by the caller's input rather
// than by system state or infrastructure. They map to HTTP 400.
func IsValidation(err error) bool {
	validationErrors := []error{
		ErrInsufficientFunds,
		ErrInvalidAmount,
		ErrInvalidOdds,
		ErrInvalidBetType,
		ErrInvalidOutcome,
		ErrInvalidRecord,
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenInvalid,
		ErrInvalidCredentials,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
