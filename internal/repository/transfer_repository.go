package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkacou/walletd/internal/models"
)

type TransferRepository interface {
	Create(ctx context.Context, tx *sql.Tx, transfer *models.Transfer) error
	GetByID(ctx context.Context, id string) (*models.Transfer, error)
}

type PostgresTransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *PostgresTransferRepository {
	return &PostgresTransferRepository{db: db}
}

func (r *PostgresTransferRepository) Create(ctx context.Context, tx *sql.Tx, transfer *models.Transfer) error {
	if transfer.ID == "" {
		transfer.ID = uuid.New().String()
	}

	query := `INSERT INTO transfers (id, sender_id, recipient_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := tx.QueryRowContext(ctx, query,
		transfer.ID,
		transfer.SenderID,
		transfer.RecipientID,
		transfer.Amount,
	).Scan(&transfer.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create transfer record: %w", err)
	}
	return nil
}

func (r *PostgresTransferRepository) GetByID(ctx context.Context, id string) (*models.Transfer, error) {
	query := `SELECT id, sender_id, recipient_id, amount, created_at
		FROM transfers WHERE id = $1`

	transfer := &models.Transfer{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&transfer.ID, &transfer.SenderID, &transfer.RecipientID, &transfer.Amount, &transfer.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("transfer not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get transfer by ID: %w", err)
	}
	return transfer, nil
}
