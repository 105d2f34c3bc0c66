// Stored-credit balance and ledger operations.
// The debit is a single conditional UPDATE with a floor-at-zero check, so two
// concurrent orders can never double-spend a balance — one of them simply
// loses the race and sees ok=false.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/darkvsx/boostd/internal/domain"
)

// ─── Credit Operations ──────────────────────────────────────────────────────

// CreditBalance returns the user's stored balance in cents, or
// domain.ErrUserNotFound.
func (db *DB) CreditBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := db.db.QueryRowContext(ctx, `
		SELECT credit_balance_cents FROM profiles WHERE user_id = ?
	`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, domain.ErrUserNotFound
	}
	return balance, err
}

// DebitCredits atomically decrements the balance, refusing to go below zero.
// Returns the post-debit balance and whether the debit applied.
func (db *DB) DebitCredits(ctx context.Context, userID string, amount int64) (int64, bool, error) {
	res, err := db.db.ExecContext(ctx, `
		UPDATE profiles SET credit_balance_cents = credit_balance_cents - ?
		WHERE user_id = ? AND credit_balance_cents >= ?
	`, amount, userID, amount)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		// Either no such user or the balance was short; report the current
		// balance (zero if the profile is missing) without applying.
		balance, berr := db.CreditBalance(ctx, userID)
		if berr == domain.ErrUserNotFound {
			return 0, false, nil
		}
		return balance, false, berr
	}

	balance, err := db.CreditBalance(ctx, userID)
	return balance, true, err
}

// InsertLedgerEntry appends one credit-ledger row.
func (db *DB) InsertLedgerEntry(ctx context.Context, e domain.CreditLedgerEntry) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO credit_ledger (id, user_id, tx_type, entry_type,
			amount_cents, order_id, description, balance_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, string(e.Type), string(e.EntryType), e.Amount,
		nullable(e.OrderID), e.Description, e.Balance,
		e.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// LedgerEntries returns a user's ledger rows, oldest first.
func (db *DB) LedgerEntries(ctx context.Context, userID string) ([]domain.CreditLedgerEntry, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, user_id, tx_type, entry_type, amount_cents, order_id,
			description, balance_cents, created_at
		FROM credit_ledger WHERE user_id = ? ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CreditLedgerEntry
	for rows.Next() {
		var e domain.CreditLedgerEntry
		var txType, entryType, createdStr string
		var orderID sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &txType, &entryType, &e.Amount,
			&orderID, &e.Description, &e.Balance, &createdStr); err != nil {
			return nil, err
		}
		e.Type = domain.TransactionType(txType)
		e.EntryType = domain.EntryType(entryType)
		if orderID.Valid {
			e.OrderID = orderID.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertProfile creates or updates a user profile (admin/test seeding).
func (db *DB) UpsertProfile(ctx context.Context, userID, email string, balanceCents int64) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, email, credit_balance_cents)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			email                = excluded.email,
			credit_balance_cents = excluded.credit_balance_cents
	`, userID, email, balanceCents)
	return err
}
