package usecase

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/internal/service"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

func testAccount(id, email, balance string) *domain.Account {
	return &domain.Account{
		ID:      id,
		Email:   email,
		Name:    email,
		Balance: decimal.RequireFromString(balance),
	}
}

func TestValidateSuccess(t *testing.T) {
	v := NewTransferValidator(service.NewFXService())
	sender := testAccount("a1", "alice@test.io", "1500")
	receiver := testAccount("b1", "bob@test.io", "0")

	amountRef, feeRef, err := v.Validate(sender, receiver, decimal.NewFromInt(100), "USD", true)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !amountRef.Equal(decimal.NewFromInt(85)) {
		t.Errorf("amountRef = %s, want 85", amountRef)
	}
	if !feeRef.Equal(decimal.RequireFromString("0.425")) {
		t.Errorf("feeRef = %s, want 0.425", feeRef)
	}
}

func TestValidateFailures(t *testing.T) {
	v := NewTransferValidator(service.NewFXService())
	alice := testAccount("a1", "alice@test.io", "1500")
	bob := testAccount("b1", "bob@test.io", "0")
	broke := testAccount("c1", "carol@test.io", "10")

	tests := []struct {
		name      string
		sender    *domain.Account
		receiver  *domain.Account
		amount    string
		currency  string
		connected bool
		wantErr   error
	}{
		{"nil sender", nil, bob, "10", "EUR", true, xerrors.ErrPartiesRequired},
		{"nil receiver", alice, nil, "10", "EUR", true, xerrors.ErrPartiesRequired},
		{"self transfer", alice, alice, "10", "EUR", true, xerrors.ErrSelfTransfer},
		{"zero amount", alice, bob, "0", "EUR", true, xerrors.ErrNonPositiveAmount},
		{"negative amount", alice, bob, "-5", "EUR", true, xerrors.ErrNonPositiveAmount},
		{"malformed currency", alice, bob, "10", "EU", true, xerrors.ErrInvalidCurrency},
		{"empty currency", alice, bob, "10", "", true, xerrors.ErrInvalidCurrency},
		{"unknown currency", alice, bob, "10", "AUD", true, xerrors.ErrUnsupportedCurrency},
		{"not connected", alice, bob, "10", "EUR", false, xerrors.ErrNotConnected},
		{"insufficient balance", broke, bob, "100", "EUR", true, xerrors.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := v.Validate(tt.sender, tt.receiver,
				decimal.RequireFromString(tt.amount), tt.currency, tt.connected)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// The first failing check decides the reported reason even when later
// checks would also fail.
func TestValidateCheckOrder(t *testing.T) {
	v := NewTransferValidator(service.NewFXService())
	alice := testAccount("a1", "alice@test.io", "0")
	bob := testAccount("b1", "bob@test.io", "0")

	// Self transfer beats the bad amount.
	if _, _, err := v.Validate(alice, alice, decimal.NewFromInt(-1), "EUR", true); !errors.Is(err, xerrors.ErrSelfTransfer) {
		t.Errorf("got %v, want ErrSelfTransfer", err)
	}
	// Bad amount beats the bad currency.
	if _, _, err := v.Validate(alice, bob, decimal.NewFromInt(-1), "nope", true); !errors.Is(err, xerrors.ErrNonPositiveAmount) {
		t.Errorf("got %v, want ErrNonPositiveAmount", err)
	}
	// Unknown currency beats the missing connection.
	if _, _, err := v.Validate(alice, bob, decimal.NewFromInt(10), "AUD", false); !errors.Is(err, xerrors.ErrUnsupportedCurrency) {
		t.Errorf("got %v, want ErrUnsupportedCurrency", err)
	}
	// Missing connection beats the empty balance.
	if _, _, err := v.Validate(alice, bob, decimal.NewFromInt(10), "EUR", false); !errors.Is(err, xerrors.ErrNotConnected) {
		t.Errorf("got %v, want ErrNotConnected", err)
	}
}

// The fee plus amount must be covered; the amount alone is not enough.
func TestValidateFeeCountsAgainstBalance(t *testing.T) {
	v := NewTransferValidator(service.NewFXService())
	sender := testAccount("a1", "alice@test.io", "100")
	receiver := testAccount("b1", "bob@test.io", "0")

	_, _, err := v.Validate(sender, receiver, decimal.NewFromInt(100), "EUR", true)
	if !errors.Is(err, xerrors.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}

	var ib *xerrors.InsufficientBalanceError
	if !errors.As(err, &ib) {
		t.Fatalf("error %v is not an InsufficientBalanceError", err)
	}
	if !ib.Required.Equal(decimal.RequireFromString("100.5")) {
		t.Errorf("Required = %s, want 100.5", ib.Required)
	}
	if !ib.Available.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Available = %s, want 100", ib.Available)
	}

	// Exactly amount plus fee passes.
	sender.Balance = decimal.RequireFromString("100.5")
	if _, _, err := v.Validate(sender, receiver, decimal.NewFromInt(100), "EUR", true); err != nil {
		t.Errorf("exact cover: %v", err)
	}
}
