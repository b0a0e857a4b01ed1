package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

// LedgerRepository applies the durable side of a transfer. Both balance
// updates and the transaction record commit as one unit; a receiver
// credit without the matching sender debit is never observable.
type LedgerRepository interface {
	ApplyTransfer(ctx context.Context, sender, receiver *domain.Account, txn *domain.Transaction) error
}

type ledgerRepo struct {
	db *pgxpool.Pool
}

func NewLedgerRepo(db *pgxpool.Pool) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) ApplyTransfer(ctx context.Context, sender, receiver *domain.Account, txn *domain.Transaction) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row locks taken in ascending id order, mirroring the in-process
	// lock discipline, so two engines sharing a database cannot
	// deadlock on the same pair either.
	lo, hi := domain.NormalizePair(sender.ID, receiver.ID)
	rows, err := tx.Query(ctx, `
		SELECT id FROM accounts WHERE id = $1 OR id = $2
		ORDER BY id ASC
		FOR UPDATE
	`, lo, hi)
	if err != nil {
		return fmt.Errorf("failed to lock accounts: %w", err)
	}
	var locked int
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan locked account: %w", err)
		}
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating locked accounts: %w", err)
	}
	if locked != 2 {
		return xerrors.ErrAccountNotFound
	}

	for _, a := range []*domain.Account{sender, receiver} {
		cmdTag, err := tx.Exec(ctx, `
			UPDATE accounts
			SET balance = $1, updated_at = $2
			WHERE id = $3
		`, a.Balance.String(), txn.CreatedAt, a.ID)
		if err != nil {
			return fmt.Errorf("failed to update balance for %s: %w", a.ID, err)
		}
		if cmdTag.RowsAffected() == 0 {
			return xerrors.ErrAccountNotFound
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (id, sender_id, receiver_id, description, amount, fee, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, txn.ID, txn.SenderID, txn.ReceiverID, txn.Description,
		txn.Amount.String(), txn.Fee.String(), txn.Currency, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}
