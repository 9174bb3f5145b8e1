package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nkacou/walletd/internal/errors"
	"github.com/nkacou/walletd/internal/models"
)

func TestAccountService_GetBalance(t *testing.T) {
	require := require.New(t)
	users := newFakeUserRepo(account(1, "alice", 3000))
	svc := NewAccountService(users, newFakeLedgerRepo(), discardLogger())

	balance, err := svc.GetBalance(context.Background(), 1)
	require.NoError(err)
	require.True(balance.Equal(decimal.NewFromInt(3000)))

	// Reading twice with no intervening mutation returns the same value.
	again, err := svc.GetBalance(context.Background(), 1)
	require.NoError(err)
	require.True(again.Equal(balance))

	_, err = svc.GetBalance(context.Background(), 99)
	require.ErrorIs(err, errors.ErrAccountNotFound)
}

func TestAccountService_GetHistory(t *testing.T) {
	require := require.New(t)
	ledger := newFakeLedgerRepo()
	svc := NewAccountService(newFakeUserRepo(account(1, "alice", 3000)), ledger, discardLogger())

	require.NoError(ledger.Append(context.Background(), nil, &models.LedgerEntry{
		UserID: 1, Description: "Recharge of 1000", Amount: decimal.NewFromInt(1000),
	}))
	require.NoError(ledger.Append(context.Background(), nil, &models.LedgerEntry{
		UserID: 1, Description: "Transfer of 500 to bob", Amount: decimal.NewFromInt(-500),
	}))
	require.NoError(ledger.Append(context.Background(), nil, &models.LedgerEntry{
		UserID: 2, Description: "Transfer of 500 from alice", Amount: decimal.NewFromInt(500),
	}))

	entries, err := svc.GetHistory(context.Background(), 1)
	require.NoError(err)
	require.Len(entries, 2)
	// Newest first.
	require.Equal("Transfer of 500 to bob", entries[0].Description)

	again, err := svc.GetHistory(context.Background(), 1)
	require.NoError(err)
	require.Equal(entries, again)
}

func TestAccountService_ListRecipients(t *testing.T) {
	require := require.New(t)
	users := newFakeUserRepo(account(1, "alice", 3000), account(2, "bob", 3000), account(3, "carol", 3000))
	svc := NewAccountService(users, newFakeLedgerRepo(), discardLogger())

	recipients, err := svc.ListRecipients(context.Background(), 1)
	require.NoError(err)
	require.Len(recipients, 2)
	for _, recipient := range recipients {
		require.NotEqual(int64(1), recipient.ID)
	}
}
