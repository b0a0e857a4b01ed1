package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the immutable record of a completed transfer. Amount is
// kept in the currency the sender requested; Fee is always in the
// reference currency. Records are created exactly once and never updated.
type Transaction struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"sender_id"`
	ReceiverID  string          `json:"receiver_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransactionPage is one page of an account's transaction history,
// a derived view over the transaction records.
type TransactionPage struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int            `json:"total"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
}
