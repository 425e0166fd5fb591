package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evetabi/sportsbook/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const betColumns = `seq, id, username, game_id, team, bet_type, odds, amount, potential_payout,
	spread_value, total_value, matchup, resolved, outcome, placed_at, resolved_at`

// BetRepository is the bet ledger: append-only apart from resolution.
type BetRepository struct {
	db *sqlx.DB
}

// NewBetRepository creates a new BetRepository.
func NewBetRepository(db *sqlx.DB) *BetRepository {
	return &BetRepository{db: db}
}

// Append validates and inserts a new bet inside a transaction. A UUID is
// generated when the record does not carry one. The returned ID is the one
// that was stored.
func (r *BetRepository) Append(ctx context.Context, tx *sqlx.Tx, b *domain.BetRecord) (uuid.UUID, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.PlacedAt.IsZero() {
		b.PlacedAt = time.Now().UTC()
	}
	if err := validate.Struct(b); err != nil {
		return uuid.Nil, fmt.Errorf("bet_repo.Append: %w: %v", domain.ErrInvalidRecord, err)
	}
	if !domain.IsWholeCents(b.Amount) || !domain.IsWholeCents(b.PotentialPayout) {
		return uuid.Nil, fmt.Errorf("bet_repo.Append: %w: amounts must be whole cents", domain.ErrInvalidRecord)
	}
	b.Resolved = false
	b.Outcome = nil
	b.ResolvedAt = nil

	query := `
		INSERT INTO bets
			(id, username, game_id, team, bet_type, odds, amount, potential_payout,
			 spread_value, total_value, matchup, resolved, outcome, placed_at, resolved_at)
		VALUES
			(:id, :username, :game_id, :team, :bet_type, :odds, :amount, :potential_payout,
			 :spread_value, :total_value, :matchup, :resolved, :outcome, :placed_at, :resolved_at)`
	if _, err := tx.NamedExecContext(ctx, query, b); err != nil {
		return uuid.Nil, fmt.Errorf("bet_repo.Append: %w", err)
	}
	return b.ID, nil
}

// GetByID fetches a single bet.
func (r *BetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BetRecord, error) {
	var b domain.BetRecord
	err := r.db.GetContext(ctx, &b, r.db.Rebind(`SELECT `+betColumns+` FROM bets WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("bet_repo.GetByID: %w", err)
	}
	return &b, nil
}

// ListByOwner returns every bet of a user in insertion order.
func (r *BetRepository) ListByOwner(ctx context.Context, username string) ([]*domain.BetRecord, error) {
	bets := []*domain.BetRecord{}
	err := r.db.SelectContext(ctx, &bets, r.db.Rebind(
		`SELECT `+betColumns+` FROM bets WHERE username = ? ORDER BY seq ASC`), username)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.ListByOwner: %w", err)
	}
	return bets, nil
}

// ListOpen returns unresolved bets, oldest first. Used by the back-office.
func (r *BetRepository) ListOpen(ctx context.Context, limit, offset int) ([]*domain.BetRecord, error) {
	bets := []*domain.BetRecord{}
	err := r.db.SelectContext(ctx, &bets, r.db.Rebind(
		`SELECT `+betColumns+` FROM bets WHERE resolved = ? ORDER BY seq ASC LIMIT ? OFFSET ?`),
		false, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.ListOpen: %w", err)
	}
	return bets, nil
}

// GetForUpdate reads a bet inside a transaction, row-locking it on backends
// that support it.
func (r *BetRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.BetRecord, error) {
	var b domain.BetRecord
	err := tx.GetContext(ctx, &b, tx.Rebind(`SELECT `+betColumns+` FROM bets WHERE id = ?`+lockClause(tx)), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("bet_repo.GetForUpdate: %w", err)
	}
	return &b, nil
}

// Resolve marks an open bet as resolved with the given outcome and returns
// the updated record. A second call fails with ErrBetAlreadyResolved and
// leaves the stored outcome untouched.
func (r *BetRepository) Resolve(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, outcome domain.BetOutcome) (*domain.BetRecord, error) {
	if !outcome.IsValid() {
		return nil, domain.ErrInvalidOutcome
	}
	b, err := r.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b.Resolved {
		return nil, domain.ErrBetAlreadyResolved
	}

	now := time.Now().UTC()
	// resolved = false in the WHERE clause keeps this a single transition even
	// if two settlements race on a backend without row locks.
	res, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE bets SET resolved = ?, outcome = ?, resolved_at = ? WHERE id = ? AND resolved = ?`),
		true, outcome, now, id, false)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.Resolve: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrBetAlreadyResolved
	}

	b.Resolved = true
	b.Outcome = &outcome
	b.ResolvedAt = &now
	return b, nil
}
