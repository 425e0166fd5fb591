package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/jmoiron/sqlx"
)

// UserRepository handles all database operations for Users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user row inside a transaction.
func (r *UserRepository) Create(ctx context.Context, tx *sqlx.Tx, u *domain.User) error {
	query := `
		INSERT INTO users (username, password_hash, role, is_active, created_at)
		VALUES (:username, :password_hash, :role, :is_active, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, u); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("user_repo.Create: %w", err)
	}
	return nil
}

// GetByUsername fetches a user by username (used for login).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(
		`SELECT username, password_hash, role, is_active, created_at FROM users WHERE username = ?`), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetByUsername: %w", err)
	}
	return &u, nil
}

// UpdateRole changes a user's role (back-office operation).
func (r *UserRepository) UpdateRole(ctx context.Context, username string, role domain.UserRole) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE users SET role = ? WHERE username = ?`), string(role), username)
	if err != nil {
		return fmt.Errorf("user_repo.UpdateRole: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetActive activates or deactivates a user account.
func (r *UserRepository) SetActive(ctx context.Context, username string, active bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE users SET is_active = ? WHERE username = ?`), active, username)
	if err != nil {
		return fmt.Errorf("user_repo.SetActive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
