package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
)

// TransactionRepository reads the transaction history. Records are only
// ever written through LedgerRepository.ApplyTransfer; this interface is
// the derived, paginated view over them.
type TransactionRepository interface {
	ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, int, error)
}

type transactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepo(db *pgxpool.Pool) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionSelectQuery = `
	SELECT id, sender_id, receiver_id, description, amount, fee, currency, created_at
	FROM transactions`

func scanTransactionRows(rows pgx.Rows) ([]*domain.Transaction, error) {
	defer rows.Close()
	var txns []*domain.Transaction

	for rows.Next() {
		var t domain.Transaction
		var amount, fee string

		err := rows.Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Description,
			&amount, &fee, &t.Currency, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}

		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
		}
		t.Fee, err = decimal.NewFromString(fee)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fee %q: %w", fee, err)
		}

		txns = append(txns, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return txns, nil
}

func (r *transactionRepo) ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, int, error) {
	var total int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE sender_id = $1 OR receiver_id = $1
	`, accountID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := r.db.Query(ctx, transactionSelectQuery+`
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}

	txns, err := scanTransactionRows(rows)
	if err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}
