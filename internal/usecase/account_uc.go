package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/internal/repository"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

// AccountUsecase provisions and lists ledger accounts. Accounts start
// with a zero balance; funding goes through the top-up path.
type AccountUsecase struct {
	accountRepo repository.AccountRepository
	log         *zap.Logger
}

func NewAccountUsecase(accountRepo repository.AccountRepository, log *zap.Logger) *AccountUsecase {
	return &AccountUsecase{accountRepo: accountRepo, log: log}
}

func (uc *AccountUsecase) Create(ctx context.Context, email, name string) (*domain.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("email: %w", xerrors.ErrInvalidRequest)
	}
	if name == "" {
		return nil, fmt.Errorf("name: %w", xerrors.ErrInvalidRequest)
	}

	account := &domain.Account{
		ID:      domain.NewID(),
		Email:   email,
		Name:    name,
		Balance: decimal.Zero,
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	uc.log.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("email", account.Email),
	)
	return account, nil
}

func (uc *AccountUsecase) Get(ctx context.Context, email string) (*domain.Account, error) {
	return uc.accountRepo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
}

func (uc *AccountUsecase) List(ctx context.Context) ([]*domain.Account, error) {
	return uc.accountRepo.List(ctx)
}
