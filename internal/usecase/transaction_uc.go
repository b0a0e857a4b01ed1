package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/internal/pub"
	"github.com/kardiguemagassa/paymybuddy/internal/repository"
	"github.com/kardiguemagassa/paymybuddy/internal/service"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100

	historyCacheTTL = 1 * time.Minute
)

// TransactionUsecase is the ledger engine: it orchestrates transfers
// (normalize, validate, mutate both balances, persist the record) and
// unilateral balance top-ups. Each call is one atomic operation; there
// is no in-flight state between calls.
type TransactionUsecase struct {
	accountRepo repository.AccountRepository
	connRepo    repository.ConnectionRepository
	ledgerRepo  repository.LedgerRepository
	txnRepo     repository.TransactionRepository
	fx          *service.FXService
	validator   *TransferValidator
	locks       *PairLocker
	events      *pub.EventPublisher
	rdb         *redis.Client
	log         *zap.Logger
}

func NewTransactionUsecase(
	accountRepo repository.AccountRepository,
	connRepo repository.ConnectionRepository,
	ledgerRepo repository.LedgerRepository,
	txnRepo repository.TransactionRepository,
	fx *service.FXService,
	locks *PairLocker,
	events *pub.EventPublisher,
	rdb *redis.Client,
	log *zap.Logger,
) *TransactionUsecase {
	return &TransactionUsecase{
		accountRepo: accountRepo,
		connRepo:    connRepo,
		ledgerRepo:  ledgerRepo,
		txnRepo:     txnRepo,
		fx:          fx,
		validator:   NewTransferValidator(fx),
		locks:       locks,
		events:      events,
		rdb:         rdb,
		log:         log,
	}
}

// Transfer moves money from sender to receiver with the global fee
// assessed on the normalized amount. The read-validate-mutate-persist
// sequence runs under both accounts' locks, acquired in ascending id
// order; on any failure no balance changes.
func (uc *TransactionUsecase) Transfer(
	ctx context.Context,
	senderEmail, receiverEmail string,
	amount decimal.Decimal,
	currency, description string,
) (*domain.Transaction, error) {
	sender, err := uc.accountRepo.GetByEmail(ctx, senderEmail)
	if err != nil {
		return nil, fmt.Errorf("sender %s: %w", senderEmail, err)
	}
	receiver, err := uc.accountRepo.GetByEmail(ctx, receiverEmail)
	if err != nil {
		return nil, fmt.Errorf("receiver %s: %w", receiverEmail, err)
	}

	unlock, err := uc.locks.lockAll(ctx, sender.ID, receiver.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read inside the critical section so validation and mutation
	// see the same state.
	sender, err = uc.accountRepo.GetByID(ctx, sender.ID)
	if err != nil {
		return nil, err
	}
	receiver, err = uc.accountRepo.GetByID(ctx, receiver.ID)
	if err != nil {
		return nil, err
	}

	connected, err := uc.connRepo.Exists(ctx, sender.ID, receiver.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check connection: %w", err)
	}

	amountRef, feeRef, err := uc.validator.Validate(sender, receiver, amount, currency, connected)
	if err != nil {
		return nil, err
	}

	sender.Balance = sender.Balance.Sub(amountRef.Add(feeRef))
	receiver.Balance = receiver.Balance.Add(amountRef)

	txn := &domain.Transaction{
		ID:          domain.NewID(),
		SenderID:    sender.ID,
		ReceiverID:  receiver.ID,
		Description: description,
		Amount:      amount,
		Fee:         feeRef,
		Currency:    service.Canonicalize(currency),
		CreatedAt:   time.Now().UTC(),
	}

	if err := uc.ledgerRepo.ApplyTransfer(ctx, sender, receiver, txn); err != nil {
		// Nothing was durably applied; the mutated copies above are
		// discarded with this frame.
		return nil, fmt.Errorf("apply transfer: %w", err)
	}

	uc.invalidateHistoryCache(ctx, sender.ID)
	uc.invalidateHistoryCache(ctx, receiver.ID)

	if uc.events != nil {
		if err := uc.events.PublishTransferCompleted(ctx, txn); err != nil {
			uc.log.Warn("failed to publish transfer event",
				zap.String("transaction_id", txn.ID), zap.Error(err))
		}
	}

	uc.log.Info("transfer completed",
		zap.String("transaction_id", txn.ID),
		zap.String("sender_id", sender.ID),
		zap.String("receiver_id", receiver.ID),
		zap.String("amount", txn.Amount.String()),
		zap.String("currency", txn.Currency),
		zap.String("fee", txn.Fee.String()),
	)

	return txn, nil
}

// AddBalance credits an account outside the transfer path: no fee, no
// connection requirement. When random is set the amount is drawn from
// the fixed top-up band instead of taken from the caller. Returns the
// amount added and the resulting balance.
func (uc *TransactionUsecase) AddBalance(
	ctx context.Context,
	email string,
	amount *decimal.Decimal,
	random bool,
) (added, newBalance decimal.Decimal, err error) {
	account, err := uc.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("account %s: %w", email, err)
	}

	unlock, err := uc.locks.lock(ctx, account.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer unlock()

	account, err = uc.accountRepo.GetByID(ctx, account.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	switch {
	case random:
		added = randomTopUp()
	case amount != nil && amount.Sign() > 0:
		added = *amount
	default:
		return decimal.Zero, decimal.Zero, xerrors.ErrInvalidAmount
	}

	account.Balance = account.Balance.Add(added)

	if err := uc.accountRepo.UpdateBalance(ctx, account.ID, account.Balance); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("update balance: %w", err)
	}

	if uc.events != nil {
		if err := uc.events.PublishTopUpCompleted(ctx, account.ID,
			added.String(), account.Balance.String(), uc.fx.Reference()); err != nil {
			uc.log.Warn("failed to publish top-up event",
				zap.String("account_id", account.ID), zap.Error(err))
		}
	}

	uc.log.Info("balance topped up",
		zap.String("account_id", account.ID),
		zap.String("added", added.String()),
		zap.String("balance", account.Balance.String()),
	)

	return added, account.Balance, nil
}

// randomTopUp draws a whole-cent amount uniformly from [10.00, 2000.00).
func randomTopUp() decimal.Decimal {
	cents := rand.Int63n(199_000) + 1_000
	return decimal.New(cents, -2)
}

// History returns one page of an account's sent and received
// transactions, newest first. Pages are cached briefly and invalidated
// whenever a transfer touches the account.
func (uc *TransactionUsecase) History(ctx context.Context, email string, limit, offset int) (*domain.TransactionPage, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	account, err := uc.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", email, err)
	}

	cacheKey := fmt.Sprintf("txn:history:%s:%d:%d", account.ID, limit, offset)

	if uc.rdb != nil {
		if val, err := uc.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var page domain.TransactionPage
			if jsonErr := json.Unmarshal([]byte(val), &page); jsonErr == nil {
				return &page, nil
			}
		}
	}

	txns, total, err := uc.txnRepo.ListForAccount(ctx, account.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	page := &domain.TransactionPage{
		Transactions: txns,
		Total:        total,
		Limit:        limit,
		Offset:       offset,
	}

	if uc.rdb != nil {
		if data, err := json.Marshal(page); err == nil {
			_ = uc.rdb.Set(ctx, cacheKey, data, historyCacheTTL).Err()
		}
	}

	return page, nil
}

func (uc *TransactionUsecase) invalidateHistoryCache(ctx context.Context, accountID string) {
	if uc.rdb == nil {
		return
	}

	pattern := fmt.Sprintf("txn:history:%s:*", accountID)
	iter := uc.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		_ = uc.rdb.Del(ctx, iter.Val()).Err()
	}
}
