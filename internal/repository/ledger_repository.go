package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nkacou/walletd/internal/models"
)

type LedgerRepository interface {
	Append(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry) error
	ListByUser(ctx context.Context, userID int64) ([]*models.LedgerEntry, error)
}

type PostgresLedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

// Append inserts a new history entry within the caller's db transaction.
// Entries are insert-only; nothing in the application updates or deletes them.
func (r *PostgresLedgerRepository) Append(ctx context.Context, tx *sql.Tx, entry *models.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (user_id, description, amount)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := tx.QueryRowContext(ctx, query, entry.UserID, entry.Description, entry.Amount).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// ListByUser returns the account's history, newest first. The id tiebreak
// keeps the order stable for entries created in the same transaction.
func (r *PostgresLedgerRepository) ListByUser(ctx context.Context, userID int64) ([]*models.LedgerEntry, error) {
	query := `SELECT id, user_id, description, amount, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry := &models.LedgerEntry{}
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.Description, &entry.Amount, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}
	return entries, nil
}
