package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicTransferCompleted = "transfer.completed"
	TopicRechargeCompleted = "recharge.completed"
)

type Publisher interface {
	Publish(topic string, event any) error
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(topic string, event any) error { return nil }

type TransferCompleted struct {
	TransferID  string          `json:"transfer_id"`
	SenderID    int64           `json:"sender_id"`
	RecipientID int64           `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

type RechargeCompleted struct {
	UserID     int64           `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}
