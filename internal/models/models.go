package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpeningBalance is credited to every account at registration.
var OpeningBalance = decimal.NewFromInt(3000)

type User struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Contact      string          `json:"contact"`
	PasswordHash string          `json:"-"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// LedgerEntry is one immutable row of an account's history. Amount is a
// signed delta: negative for debits, positive for credits, so that
// OpeningBalance + sum(amounts) equals the current balance.
type LedgerEntry struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Transfer records one successful transfer between two accounts.
type Transfer struct {
	ID          string          `json:"id"`
	SenderID    int64           `json:"sender_id"`
	RecipientID int64           `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type UserResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type BalanceResponse struct {
	UserID  int64           `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type CreateTransferRequest struct {
	RecipientID int64           `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
}

type TransferResponse struct {
	ID            string          `json:"id"`
	SenderID      int64           `json:"sender_id"`
	RecipientID   int64           `json:"recipient_id"`
	Amount        decimal.Decimal `json:"amount"`
	SenderBalance decimal.Decimal `json:"sender_balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

type RechargeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type RechargeResponse struct {
	UserID  int64           `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
