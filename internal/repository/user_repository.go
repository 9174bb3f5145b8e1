package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/nkacou/walletd/internal/errors"
	"github.com/nkacou/walletd/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error)
	AdjustBalance(ctx context.Context, tx *sql.Tx, id int64, delta decimal.Decimal) (decimal.Decimal, error)
	ListOthers(ctx context.Context, excludeID int64) ([]*models.User, error)
}

type PostgresUserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, name, email, contact, password_hash, balance, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Contact,
		&user.PasswordHash, &user.Balance, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (name, email, contact, password_hash, balance)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, user.Name, user.Email, user.Contact,
		user.PasswordHash, user.Balance).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.ErrDuplicateIdentity
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	user, err := scanUser(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID for update: %w", err)
	}
	return user, nil
}

// AdjustBalance applies a signed delta to the user's balance and returns the
// new balance. The update is guarded so a debit can never drive the balance
// below zero; callers must already hold the row lock, so an unmatched row
// means the funds are insufficient, not that the user is missing.
func (r *PostgresUserRepository) AdjustBalance(ctx context.Context, tx *sql.Tx, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `UPDATE users
		SET balance = balance + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance`

	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, query, delta, id).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, errors.ErrInsufficientFunds
		}
		return decimal.Zero, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return balance, nil
}

func (r *PostgresUserRepository) ListOthers(ctx context.Context, excludeID int64) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id != $1 ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Contact,
			&user.PasswordHash, &user.Balance, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over users: %w", err)
	}
	return users, nil
}
