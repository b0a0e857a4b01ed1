package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/internal/service"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

// FeeRate is the single global fee applied to every transfer, as a
// fraction of the normalized amount. No tiering, no per-currency
// variance.
var FeeRate = decimal.RequireFromString("0.005")

// TransferValidator decides whether a transfer may proceed. It holds no
// mutable state; the connection lookup result is passed in so the check
// runs inside the caller's critical section, not as a separate call.
type TransferValidator struct {
	fx *service.FXService
}

func NewTransferValidator(fx *service.FXService) *TransferValidator {
	return &TransferValidator{fx: fx}
}

// Validate applies the checks in fixed order; the first failure
// determines the reported reason. On success it returns the normalized
// amount and the fee, both in reference currency, at full precision.
func (v *TransferValidator) Validate(
	sender, receiver *domain.Account,
	amount decimal.Decimal,
	currency string,
	connected bool,
) (amountRef, feeRef decimal.Decimal, err error) {
	if sender == nil || receiver == nil {
		return decimal.Zero, decimal.Zero, xerrors.ErrPartiesRequired
	}
	if sender.ID == receiver.ID {
		return decimal.Zero, decimal.Zero, xerrors.ErrSelfTransfer
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, decimal.Zero, xerrors.ErrNonPositiveAmount
	}
	if len(service.Canonicalize(currency)) != 3 {
		return decimal.Zero, decimal.Zero, xerrors.ErrInvalidCurrency
	}
	if !v.fx.IsSupported(currency) {
		return decimal.Zero, decimal.Zero, xerrors.ErrUnsupportedCurrency
	}
	if !connected {
		return decimal.Zero, decimal.Zero, xerrors.ErrNotConnected
	}

	amountRef, err = v.fx.ToReference(amount, currency)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	feeRef = amountRef.Mul(FeeRate)
	totalRef := amountRef.Add(feeRef)

	if sender.Balance.LessThan(totalRef) {
		return decimal.Zero, decimal.Zero, &xerrors.InsufficientBalanceError{
			Currency:  v.fx.Reference(),
			Required:  totalRef,
			Available: sender.Balance,
		}
	}

	return amountRef, feeRef, nil
}
