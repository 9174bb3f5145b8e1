package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/nkacou/walletd/internal/errors"
	"github.com/nkacou/walletd/internal/events"
	"github.com/nkacou/walletd/internal/models"
	"github.com/nkacou/walletd/internal/repository"
)

// maxTxAttempts bounds retries on serialization conflicts before the
// operation is surfaced as failed.
const maxTxAttempts = 3

type TransferResult struct {
	Transfer      *models.Transfer
	SenderBalance decimal.Decimal
}

type RechargeResult struct {
	UserID  int64
	Amount  decimal.Decimal
	Balance decimal.Decimal
}

type TransactionService interface {
	Transfer(ctx context.Context, senderID, recipientID int64, amount decimal.Decimal) (*TransferResult, error)
	Recharge(ctx context.Context, userID int64, amount decimal.Decimal) (*RechargeResult, error)
}

type TransactionServiceImpl struct {
	db           *sql.DB
	userRepo     repository.UserRepository
	transferRepo repository.TransferRepository
	ledgerRepo   repository.LedgerRepository
	publisher    events.Publisher
	logger       *slog.Logger
}

func NewTransactionService(db *sql.DB, userRepo repository.UserRepository, transferRepo repository.TransferRepository, ledgerRepo repository.LedgerRepository, publisher events.Publisher, logger *slog.Logger) *TransactionServiceImpl {
	return &TransactionServiceImpl{
		db:           db,
		userRepo:     userRepo,
		transferRepo: transferRepo,
		ledgerRepo:   ledgerRepo,
		publisher:    publisher,
		logger:       logger,
	}
}

// Transfer moves amount from sender to recipient, appending one ledger entry
// per party, all within a single serializable db transaction. Money is only
// ever moved, never created: the debit and credit commit together or not at
// all. Serialization conflicts are retried a bounded number of times.
func (s *TransactionServiceImpl) Transfer(ctx context.Context, senderID, recipientID int64, amount decimal.Decimal) (*TransferResult, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		s.logger.Warn("invalid transfer amount",
			"sender_id", senderID,
			"amount", amount,
		)
		return nil, errors.ErrInvalidAmount
	}

	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("transfer recipient not found",
				"sender_id", senderID,
				"recipient_id", recipientID,
			)
			return nil, errors.ErrRecipientNotFound
		}
		return nil, errors.NewTransactionError("resolve recipient", err)
	}

	if senderID == recipientID {
		s.logger.Warn("self-transfer rejected",
			"sender_id", senderID,
		)
		return nil, errors.ErrInvalidRecipient
	}

	var result *TransferResult
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		result, err = s.runTransfer(ctx, senderID, recipientID, amount)
		if err == nil || !isRetryableTxError(err) {
			break
		}
		s.logger.Warn("retrying transfer after transaction conflict",
			"sender_id", senderID,
			"recipient_id", recipientID,
			"attempt", attempt,
		)
	}
	if err != nil {
		return nil, err
	}

	event := events.TransferCompleted{
		TransferID:  result.Transfer.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		OccurredAt:  result.Transfer.CreatedAt,
	}
	if err := s.publisher.Publish(events.TopicTransferCompleted, event); err != nil {
		// The transfer is already durable; a lost event is log-only.
		s.logger.Error("failed to publish transfer event",
			"transfer_id", result.Transfer.ID,
			"error", err.Error(),
		)
	}

	s.logger.Info("transfer completed",
		"transfer_id", result.Transfer.ID,
		"sender_id", senderID,
		"recipient_id", recipientID,
		"amount", amount,
	)
	return result, nil
}

func (s *TransactionServiceImpl) runTransfer(ctx context.Context, senderID, recipientID int64, amount decimal.Decimal) (*TransferResult, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		s.logger.Error("failed to begin transaction",
			"error", err.Error(),
		)
		return nil, errors.NewTransactionError("begin", err)
	}

	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	// Lock both rows in ascending id order so two opposing transfers cannot
	// deadlock on each other.
	firstID, secondID := senderID, recipientID
	if recipientID < senderID {
		firstID, secondID = recipientID, senderID
	}

	first, err := s.userRepo.GetByIDForUpdate(ctx, tx, firstID)
	if err != nil {
		return nil, s.lockError(firstID, recipientID, err)
	}
	second, err := s.userRepo.GetByIDForUpdate(ctx, tx, secondID)
	if err != nil {
		return nil, s.lockError(secondID, recipientID, err)
	}

	sender, recipient := first, second
	if sender.ID != senderID {
		sender, recipient = second, first
	}

	if sender.Balance.Cmp(amount) < 0 {
		s.logger.Warn("insufficient funds for transfer",
			"sender_id", senderID,
			"available_balance", sender.Balance,
			"requested_amount", amount,
		)
		return nil, errors.ErrInsufficientFunds
	}

	senderBalance, err := s.userRepo.AdjustBalance(ctx, tx, senderID, amount.Neg())
	if err != nil {
		if errors.IsInsufficientFunds(err) {
			return nil, err
		}
		return nil, errors.NewTransactionError("debit sender", err)
	}

	if _, err := s.userRepo.AdjustBalance(ctx, tx, recipientID, amount); err != nil {
		return nil, errors.NewTransactionError("credit recipient", err)
	}

	transfer := &models.Transfer{
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
	}
	if err := s.transferRepo.Create(ctx, tx, transfer); err != nil {
		return nil, errors.NewTransactionError("create transfer record", err)
	}

	debitEntry := &models.LedgerEntry{
		UserID:      senderID,
		Description: fmt.Sprintf("Transfer of %s to %s", amount.String(), recipient.Name),
		Amount:      amount.Neg(),
	}
	if err := s.ledgerRepo.Append(ctx, tx, debitEntry); err != nil {
		return nil, errors.NewTransactionError("append sender ledger entry", err)
	}

	creditEntry := &models.LedgerEntry{
		UserID:      recipientID,
		Description: fmt.Sprintf("Transfer of %s from %s", amount.String(), sender.Name),
		Amount:      amount,
	}
	if err := s.ledgerRepo.Append(ctx, tx, creditEntry); err != nil {
		return nil, errors.NewTransactionError("append recipient ledger entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewTransactionError("commit", err)
	}
	tx = nil

	return &TransferResult{
		Transfer:      transfer,
		SenderBalance: senderBalance,
	}, nil
}

// Recharge credits the account and appends one ledger entry as a unit. This
// is the sole operation that increases total system money.
func (s *TransactionServiceImpl) Recharge(ctx context.Context, userID int64, amount decimal.Decimal) (*RechargeResult, error) {
	if amount.Cmp(decimal.Zero) <= 0 {
		s.logger.Warn("invalid recharge amount",
			"user_id", userID,
			"amount", amount,
		)
		return nil, errors.ErrInvalidAmount
	}

	var result *RechargeResult
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		result, err = s.runRecharge(ctx, userID, amount)
		if err == nil || !isRetryableTxError(err) {
			break
		}
		s.logger.Warn("retrying recharge after transaction conflict",
			"user_id", userID,
			"attempt", attempt,
		)
	}
	if err != nil {
		return nil, err
	}

	event := events.RechargeCompleted{
		UserID:     userID,
		Amount:     amount,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(events.TopicRechargeCompleted, event); err != nil {
		s.logger.Error("failed to publish recharge event",
			"user_id", userID,
			"error", err.Error(),
		)
	}

	s.logger.Info("recharge completed",
		"user_id", userID,
		"amount", amount,
	)
	return result, nil
}

func (s *TransactionServiceImpl) runRecharge(ctx context.Context, userID int64, amount decimal.Decimal) (*RechargeResult, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		s.logger.Error("failed to begin transaction",
			"error", err.Error(),
		)
		return nil, errors.NewTransactionError("begin", err)
	}

	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	if _, err := s.userRepo.GetByIDForUpdate(ctx, tx, userID); err != nil {
		if errors.IsNotFound(err) {
			return nil, err
		}
		return nil, errors.NewTransactionError("lock account", err)
	}

	balance, err := s.userRepo.AdjustBalance(ctx, tx, userID, amount)
	if err != nil {
		return nil, errors.NewTransactionError("credit account", err)
	}

	entry := &models.LedgerEntry{
		UserID:      userID,
		Description: fmt.Sprintf("Recharge of %s", amount.String()),
		Amount:      amount,
	}
	if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
		return nil, errors.NewTransactionError("append ledger entry", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewTransactionError("commit", err)
	}
	tx = nil

	return &RechargeResult{
		UserID:  userID,
		Amount:  amount,
		Balance: balance,
	}, nil
}

func (s *TransactionServiceImpl) lockError(lockedID, recipientID int64, err error) error {
	if errors.IsNotFound(err) {
		if lockedID == recipientID {
			return errors.ErrRecipientNotFound
		}
		return errors.NewTransactionError("lock sender account", err)
	}
	return errors.NewTransactionError("lock account", err)
}

// isRetryableTxError reports whether the database rejected the transaction
// with a serialization failure (40001) or deadlock (40P01), both of which are
// safe to retry from scratch.
func isRetryableTxError(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
