package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
)

const TransferEventsChannel = "transfer_events"

// EventPublisher pushes completed ledger operations onto a Redis
// pub/sub channel for downstream consumers (notifications, analytics).
// Publication is best-effort; the ledger never fails a committed
// transfer because an event could not be delivered.
type EventPublisher struct {
	rdb *redis.Client
}

func NewEventPublisher(rdb *redis.Client) *EventPublisher {
	return &EventPublisher{rdb: rdb}
}

type TransferEvent struct {
	EventType     string    `json:"event_type"` // transfer.completed, topup.completed
	TransactionID string    `json:"transaction_id,omitempty"`
	SenderID      string    `json:"sender_id,omitempty"`
	ReceiverID    string    `json:"receiver_id,omitempty"`
	AccountID     string    `json:"account_id,omitempty"`
	Amount        string    `json:"amount"`
	Fee           string    `json:"fee,omitempty"`
	Currency      string    `json:"currency"`
	BalanceAfter  string    `json:"balance_after,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (p *EventPublisher) publish(ctx context.Context, event *TransferEvent) error {
	event.Timestamp = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, TransferEventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PublishTransferCompleted announces a committed transfer.
func (p *EventPublisher) PublishTransferCompleted(ctx context.Context, txn *domain.Transaction) error {
	return p.publish(ctx, &TransferEvent{
		EventType:     "transfer.completed",
		TransactionID: txn.ID,
		SenderID:      txn.SenderID,
		ReceiverID:    txn.ReceiverID,
		Amount:        txn.Amount.String(),
		Fee:           txn.Fee.String(),
		Currency:      txn.Currency,
	})
}

// PublishTopUpCompleted announces a committed balance top-up.
func (p *EventPublisher) PublishTopUpCompleted(ctx context.Context, accountID, amount, balanceAfter, currency string) error {
	return p.publish(ctx, &TransferEvent{
		EventType:    "topup.completed",
		AccountID:    accountID,
		Amount:       amount,
		Currency:     currency,
		BalanceAfter: balanceAfter,
	})
}
