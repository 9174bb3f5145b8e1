package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkacou/walletd/internal/errors"
	"github.com/nkacou/walletd/internal/events"
	"github.com/nkacou/walletd/internal/models"
)

type txFixture struct {
	db        *sql.DB
	mock      sqlmock.Sqlmock
	users     *fakeUserRepo
	ledger    *fakeLedgerRepo
	transfers *fakeTransferRepo
	publisher *fakePublisher
	service   *TransactionServiceImpl
}

func newTxFixture(t *testing.T, users ...*models.User) *txFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &txFixture{
		db:        db,
		mock:      mock,
		users:     newFakeUserRepo(users...),
		ledger:    newFakeLedgerRepo(),
		transfers: &fakeTransferRepo{},
		publisher: &fakePublisher{},
	}
	f.service = NewTransactionService(db, f.users, f.transfers, f.ledger, f.publisher, discardLogger())
	return f
}

func account(id int64, name string, balance int64) *models.User {
	return &models.User{
		ID:      id,
		Name:    name,
		Email:   name + "@example.com",
		Contact: name + "-contact",
		Balance: decimal.NewFromInt(balance),
	}
}

func TestTransfer_MovesFundsAndWritesBothLedgerEntries(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000), account(2, "bob", 3000))

	totalBefore := f.users.totalBalance()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.Transfer(context.Background(), 1, 2, decimal.NewFromInt(500))
	require.NoError(err)
	require.True(result.SenderBalance.Equal(decimal.NewFromInt(2500)))

	alice, _ := f.users.GetByID(context.Background(), 1)
	bob, _ := f.users.GetByID(context.Background(), 2)
	require.True(alice.Balance.Equal(decimal.NewFromInt(2500)))
	require.True(bob.Balance.Equal(decimal.NewFromInt(3500)))

	// Money is moved, never created.
	require.True(f.users.totalBalance().Equal(totalBefore))

	// Exactly one signed entry per party, naming the counterparty.
	aliceEntries := f.ledger.entriesFor(1)
	bobEntries := f.ledger.entriesFor(2)
	require.Len(aliceEntries, 1)
	require.Len(bobEntries, 1)
	require.True(aliceEntries[0].Amount.Equal(decimal.NewFromInt(-500)))
	require.True(bobEntries[0].Amount.Equal(decimal.NewFromInt(500)))
	require.Contains(aliceEntries[0].Description, "bob")
	require.Contains(bobEntries[0].Description, "alice")
	require.True(aliceEntries[0].Amount.Abs().Equal(bobEntries[0].Amount.Abs()))

	require.Len(f.transfers.transfers, 1)
	require.Equal(result.Transfer.ID, f.transfers.transfers[0].ID)

	require.Len(f.publisher.published, 1)
	require.Equal(events.TopicTransferCompleted, f.publisher.published[0].topic)

	require.NoError(f.mock.ExpectationsWereMet())
}

func TestTransfer_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 100), account(2, "bob", 3000))

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Transfer(context.Background(), 1, 2, decimal.NewFromInt(500))
	require.ErrorIs(err, errors.ErrInsufficientFunds)

	alice, _ := f.users.GetByID(context.Background(), 1)
	bob, _ := f.users.GetByID(context.Background(), 2)
	require.True(alice.Balance.Equal(decimal.NewFromInt(100)))
	require.True(bob.Balance.Equal(decimal.NewFromInt(3000)))
	require.Empty(f.ledger.entries)
	require.Empty(f.transfers.transfers)
	require.Empty(f.publisher.published)

	require.NoError(f.mock.ExpectationsWereMet())
}

func TestTransfer_NonPositiveAmountRejectedBeforeAnyIO(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000), account(2, "bob", 3000))

	for _, amount := range []decimal.Decimal{decimal.NewFromInt(-50), decimal.Zero} {
		_, err := f.service.Transfer(context.Background(), 1, 2, amount)
		require.ErrorIs(err, errors.ErrInvalidAmount)
	}

	require.Empty(f.ledger.entries)
	// No transaction must even have been opened.
	require.NoError(f.mock.ExpectationsWereMet())
}

func TestTransfer_RecipientNotFound(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000))

	_, err := f.service.Transfer(context.Background(), 1, 99, decimal.NewFromInt(500))
	require.ErrorIs(err, errors.ErrRecipientNotFound)
	require.Empty(f.ledger.entries)
	require.NoError(f.mock.ExpectationsWereMet())
}

func TestTransfer_SelfTransferRejected(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000))

	_, err := f.service.Transfer(context.Background(), 1, 1, decimal.NewFromInt(500))
	require.ErrorIs(err, errors.ErrInvalidRecipient)

	alice, _ := f.users.GetByID(context.Background(), 1)
	require.True(alice.Balance.Equal(decimal.NewFromInt(3000)))
	require.Empty(f.ledger.entries)
	require.NoError(f.mock.ExpectationsWereMet())
}

func TestTransfer_RetriesOnSerializationConflict(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000), account(2, "bob", 3000))

	// First attempt aborts with a serialization failure while locking; the
	// second attempt goes through.
	f.users.lockErrs = []error{&pq.Error{Code: "40001"}}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.Transfer(context.Background(), 1, 2, decimal.NewFromInt(500))
	require.NoError(err)
	require.True(result.SenderBalance.Equal(decimal.NewFromInt(2500)))
	require.NoError(f.mock.ExpectationsWereMet())
}

func TestTransfer_GivesUpAfterBoundedRetries(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000), account(2, "bob", 3000))

	f.users.lockErrs = []error{
		&pq.Error{Code: "40001"},
		&pq.Error{Code: "40P01"},
		&pq.Error{Code: "40001"},
	}

	for i := 0; i < maxTxAttempts; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
	}

	_, err := f.service.Transfer(context.Background(), 1, 2, decimal.NewFromInt(500))
	require.Error(err)

	var txErr *errors.TransactionError
	require.ErrorAs(err, &txErr)

	alice, _ := f.users.GetByID(context.Background(), 1)
	require.True(alice.Balance.Equal(decimal.NewFromInt(3000)))
	require.Empty(f.ledger.entries)
	require.NoError(f.mock.ExpectationsWereMet())
}

func TestTransfer_PublishFailureDoesNotFailTransfer(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000), account(2, "bob", 3000))
	f.publisher.err = context.DeadlineExceeded

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.Transfer(context.Background(), 1, 2, decimal.NewFromInt(500))
	require.NoError(err)
	require.True(result.SenderBalance.Equal(decimal.NewFromInt(2500)))
	require.NoError(f.mock.ExpectationsWereMet())
}

func TestTransfer_ConservationAcrossSequence(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000), account(2, "bob", 3000), account(3, "carol", 3000))

	totalBefore := f.users.totalBalance()

	moves := []struct {
		from, to int64
		amount   int64
	}{
		{1, 2, 500},
		{2, 3, 1200},
		{3, 1, 700},
		{2, 1, 50},
	}
	for _, m := range moves {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
		_, err := f.service.Transfer(context.Background(), m.from, m.to, decimal.NewFromInt(m.amount))
		require.NoError(err)
	}

	require.True(f.users.totalBalance().Equal(totalBefore))
	require.Len(f.ledger.entries, 2*len(moves))
	require.NoError(f.mock.ExpectationsWereMet())
}

func TestRecharge_CreditsAccountAndWritesOneEntry(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000))

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.service.Recharge(context.Background(), 1, decimal.NewFromInt(1000))
	require.NoError(err)
	require.True(result.Balance.Equal(decimal.NewFromInt(4000)))

	entries := f.ledger.entriesFor(1)
	require.Len(entries, 1)
	require.True(entries[0].Amount.Equal(decimal.NewFromInt(1000)))
	require.Contains(entries[0].Description, "Recharge")

	require.Len(f.publisher.published, 1)
	require.Equal(events.TopicRechargeCompleted, f.publisher.published[0].topic)
	require.NoError(f.mock.ExpectationsWereMet())
}

func TestRecharge_NonPositiveAmountRejected(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t, account(1, "alice", 3000))

	_, err := f.service.Recharge(context.Background(), 1, decimal.NewFromInt(-10))
	require.ErrorIs(err, errors.ErrInvalidAmount)

	alice, _ := f.users.GetByID(context.Background(), 1)
	require.True(alice.Balance.Equal(decimal.NewFromInt(3000)))
	require.Empty(f.ledger.entries)
	require.NoError(f.mock.ExpectationsWereMet())
}

func TestRecharge_UnknownAccount(t *testing.T) {
	require := require.New(t)
	f := newTxFixture(t)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.service.Recharge(context.Background(), 99, decimal.NewFromInt(100))
	require.ErrorIs(err, errors.ErrAccountNotFound)
	require.Empty(f.ledger.entries)
	require.NoError(f.mock.ExpectationsWereMet())
}
