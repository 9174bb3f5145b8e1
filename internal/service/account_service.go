package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/nkacou/walletd/internal/errors"
	"github.com/nkacou/walletd/internal/models"
	"github.com/nkacou/walletd/internal/repository"
)

type AccountService interface {
	GetAccount(ctx context.Context, id int64) (*models.User, error)
	GetBalance(ctx context.Context, id int64) (decimal.Decimal, error)
	GetHistory(ctx context.Context, id int64) ([]*models.LedgerEntry, error)
	ListRecipients(ctx context.Context, id int64) ([]*models.User, error)
}

type AccountServiceImpl struct {
	userRepo   repository.UserRepository
	ledgerRepo repository.LedgerRepository
	logger     *slog.Logger
}

func NewAccountService(userRepo repository.UserRepository, ledgerRepo repository.LedgerRepository, logger *slog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

func (s *AccountServiceImpl) GetAccount(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("account not found",
				"user_id", id,
			)
			return nil, err
		}
		s.logger.Error("failed to get account",
			"user_id", id,
			"error", err.Error(),
		)
		return nil, err
	}
	return user, nil
}

func (s *AccountServiceImpl) GetBalance(ctx context.Context, id int64) (decimal.Decimal, error) {
	user, err := s.GetAccount(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

func (s *AccountServiceImpl) GetHistory(ctx context.Context, id int64) ([]*models.LedgerEntry, error) {
	entries, err := s.ledgerRepo.ListByUser(ctx, id)
	if err != nil {
		s.logger.Error("failed to get history",
			"user_id", id,
			"error", err.Error(),
		)
		return nil, err
	}
	return entries, nil
}

// ListRecipients returns every other account, the candidate targets the
// transfer form offers.
func (s *AccountServiceImpl) ListRecipients(ctx context.Context, id int64) ([]*models.User, error) {
	users, err := s.userRepo.ListOthers(ctx, id)
	if err != nil {
		s.logger.Error("failed to list recipients",
			"user_id", id,
			"error", err.Error(),
		)
		return nil, err
	}
	return users, nil
}
