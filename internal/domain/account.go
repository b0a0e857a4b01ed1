package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// NewID returns a ULID string. ULIDs sort lexicographically by creation
// time, which also gives account locking its global acquisition order.
func NewID() string {
	return ulid.Make().String()
}

// Account is a registered user holding a single balance denominated in
// the reference currency. The balance is mutated only by the ledger
// engine; credentials and profile data live outside this service.
type Account struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}

// AccountSummary is the projection used when listing connections.
type AccountSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{ID: a.ID, Email: a.Email, Name: a.Name}
}

// Summaries projects a list of accounts, preserving order.
func Summaries(accounts []*Account) []AccountSummary {
	out := make([]AccountSummary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Summary())
	}
	return out
}
