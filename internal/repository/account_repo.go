package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

// AccountRepository is the persistence boundary for accounts. Balances
// are stored at full precision; callers never see partially written
// state.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)

	// UpdateBalance upserts the balance of a single account. Two-sided
	// transfer mutations go through LedgerRepository instead.
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
}

type accountRepo struct {
	db *pgxpool.Pool
}

func NewAccountRepo(db *pgxpool.Pool) AccountRepository {
	return &accountRepo{db: db}
}

const accountSelectQuery = `
	SELECT id, email, name, balance, created_at, updated_at
	FROM accounts`

// scanAccount scans one row; balances come back as text and parse into
// decimals to avoid a float round trip.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var balance string

	err := row.Scan(&a.ID, &a.Email, &a.Name, &balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
	}

	return &a, nil
}

func scanAccountRows(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()
	var accounts []*domain.Account

	for rows.Next() {
		var a domain.Account
		var balance string

		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}

		var err error
		a.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance %q: %w", balance, err)
		}
		accounts = append(accounts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return accounts, nil
}

func (r *accountRepo) Create(ctx context.Context, account *domain.Account) error {
	now := time.Now()
	if account.ID == "" {
		account.ID = domain.NewID()
	}
	account.CreatedAt = now
	account.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, email, name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, account.ID, account.Email, account.Name, account.Balance.String(), now, now)

	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return xerrors.ErrEmailAlreadyInUse
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, accountSelectQuery+` WHERE email=$1`, email)
	return scanAccount(row)
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, accountSelectQuery+` WHERE id=$1`, id)
	return scanAccount(row)
}

func (r *accountRepo) List(ctx context.Context) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, accountSelectQuery+` ORDER BY email ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	return scanAccountRows(rows)
}

func (r *accountRepo) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`, balance.String(), time.Now(), id)

	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrAccountNotFound
	}

	return nil
}
