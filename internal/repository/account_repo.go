package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// AccountRepository handles all database operations for Accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account row inside a transaction.
func (r *AccountRepository) Create(ctx context.Context, tx *sqlx.Tx, a *domain.Account) error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("account_repo.Create: %w: %v", domain.ErrInvalidRecord, err)
	}
	if a.Balance.IsNegative() {
		return fmt.Errorf("account_repo.Create: %w", domain.ErrInvalidAmount)
	}
	query := `
		INSERT INTO accounts (username, balance, created_at, updated_at)
		VALUES (:username, :balance, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, a); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("account_repo.Create: %w", err)
	}
	return nil
}

// Get fetches an account by username.
func (r *AccountRepository) Get(ctx context.Context, username string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.GetContext(ctx, &a, r.db.Rebind(
		`SELECT username, balance, created_at, updated_at FROM accounts WHERE username = ?`), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account_repo.Get: %w", err)
	}
	return &a, nil
}

// GetForUpdate fetches an account inside a transaction, row-locking it on
// backends that support it.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, username string) (*domain.Account, error) {
	var a domain.Account
	err := tx.GetContext(ctx, &a, tx.Rebind(
		`SELECT username, balance, created_at, updated_at FROM accounts WHERE username = ?`+lockClause(tx)),
		username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("account_repo.GetForUpdate: %w", err)
	}
	return &a, nil
}

// Debit subtracts amount from the account inside a transaction and returns
// the new balance. Returns ErrInsufficientFunds when amount exceeds the
// balance; the row is left untouched in that case.
func (r *AccountRepository) Debit(ctx context.Context, tx *sqlx.Tx, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	a, err := r.GetForUpdate(ctx, tx, username)
	if err != nil {
		return decimal.Zero, err
	}
	if !a.CanCover(amount) {
		return a.Balance, domain.ErrInsufficientFunds
	}
	newBalance := a.Balance.Sub(amount)
	if err = r.setBalance(ctx, tx, username, newBalance); err != nil {
		return decimal.Zero, fmt.Errorf("account_repo.Debit: %w", err)
	}
	return newBalance, nil
}

// Credit adds amount to the account inside a transaction and returns the new
// balance.
func (r *AccountRepository) Credit(ctx context.Context, tx *sqlx.Tx, username string, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	a, err := r.GetForUpdate(ctx, tx, username)
	if err != nil {
		return decimal.Zero, err
	}
	newBalance := a.Balance.Add(amount)
	if err = r.setBalance(ctx, tx, username, newBalance); err != nil {
		return decimal.Zero, fmt.Errorf("account_repo.Credit: %w", err)
	}
	return newBalance, nil
}

func (r *AccountRepository) setBalance(ctx context.Context, tx *sqlx.Tx, username string, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE username = ?`),
		balance, time.Now().UTC(), username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}
