package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wondough/bank/internal/models"
)

// LedgerService keeps the append-only transaction log. A balance is never
// stored; it is the sum of a user's entries, computed fresh on every query.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

// RecordTransfer moves amount from sender to recipient as a debit/credit
// entry pair sharing one description. It returns false without touching the
// ledger when the amount is negative, when the recipient does not exist or
// when the sender's balance does not cover the amount. The balance check and
// both appends run in one transaction holding a lock on the sender's user
// row, so two concurrent transfers from the same sender cannot both pass the
// check against a stale balance. Zero amounts and self-transfers are allowed.
func (s *LedgerService) RecordTransfer(ctx context.Context, senderID, recipientID int, description string, amount float64) (bool, error) {
	if amount < 0 {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting transfer: %w", err)
	}
	defer tx.Rollback()

	// Serializes balance-affecting work for this sender.
	var lockedID int
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE id = $1 FOR UPDATE`, senderID).Scan(&lockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("locking sender %d: %w", senderID, err)
	}

	var recipientExists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, recipientID).Scan(&recipientExists)
	if err != nil {
		return false, fmt.Errorf("checking recipient %d: %w", recipientID, err)
	}
	if !recipientExists {
		return false, nil
	}

	var balance float64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE owner_user_id = $1`,
		senderID).Scan(&balance)
	if err != nil {
		return false, fmt.Errorf("computing balance for %d: %w", senderID, err)
	}
	if amount > balance {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (owner_user_id, amount, description) VALUES ($1, $2, $3)`,
		senderID, -amount, description)
	if err != nil {
		return false, fmt.Errorf("appending debit for %d: %w", senderID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (owner_user_id, amount, description) VALUES ($1, $2, $3)`,
		recipientID, amount, description)
	if err != nil {
		return false, fmt.Errorf("appending credit for %d: %w", recipientID, err)
	}

	// The transfer only counts once both rows are committed.
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transfer: %w", err)
	}
	return true, nil
}

// BalanceOf returns every transaction owned by the user, most recent first,
// together with their summed balance.
func (s *LedgerService) BalanceOf(ctx context.Context, userID int) (float64, []models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_user_id, amount, description FROM transactions
		 WHERE owner_user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return 0, nil, fmt.Errorf("listing transactions for %d: %w", userID, err)
	}
	defer rows.Close()

	var balance float64
	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.OwnerUserID, &t.Amount, &t.Description); err != nil {
			return 0, nil, fmt.Errorf("scanning transaction for %d: %w", userID, err)
		}
		balance += t.Amount
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("listing transactions for %d: %w", userID, err)
	}
	return balance, transactions, nil
}
