package xerrors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// ParsePGErrorCode extracts the SQLSTATE code from a pgx error.
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrNotFound       = errors.New("not found")
)

// Accounts
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrEmailAlreadyInUse = errors.New("email already in use")
)

// Transfer validation
var (
	ErrPartiesRequired     = errors.New("sender and receiver are required")
	ErrSelfTransfer        = errors.New("cannot send money to yourself")
	ErrNonPositiveAmount   = errors.New("amount must be positive")
	ErrInvalidCurrency     = errors.New("invalid currency code")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrNotConnected        = errors.New("money can only be sent to your connections")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// Connection graph
var (
	ErrSelfConnection     = errors.New("cannot add yourself as a connection")
	ErrConnectionExists   = errors.New("connection already exists")
	ErrConnectionNotFound = errors.New("connection not found")
)

// Resource / transient
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLedgerBusy          = errors.New("ledger busy, retry later")
)

// InsufficientBalanceError carries the computed shortfall so callers can
// render a precise message without seeing any other internal state.
type InsufficientBalanceError struct {
	Currency  string          // reference currency code
	Required  decimal.Decimal // amount + fee, in reference currency
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s %s, available %s %s",
		e.Required.StringFixed(2), e.Currency,
		e.Available.StringFixed(2), e.Currency)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }
