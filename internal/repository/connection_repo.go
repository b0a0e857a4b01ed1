package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

// ConnectionRepository stores the connection graph as a single edge-set
// of sorted id pairs. Both directions of a query resolve to the same
// row, so symmetry cannot be violated by a partial write.
type ConnectionRepository interface {
	Exists(ctx context.Context, idA, idB string) (bool, error)
	Insert(ctx context.Context, idA, idB string) error
	// Delete removes the edge if present; the bool reports whether
	// anything was removed. Deleting an absent edge is not an error.
	Delete(ctx context.Context, idA, idB string) (bool, error)
	// Replace swaps one of ownerID's edges for another as one atomic
	// unit: the old edge is removed and the new one inserted, or
	// neither change is applied.
	Replace(ctx context.Context, ownerID, oldPeerID, newPeerID string) error
	// PeerAccounts returns the accounts adjacent to id.
	PeerAccounts(ctx context.Context, id string) ([]*domain.Account, error)
	// PotentialPeerAccounts returns every account that is neither id
	// itself nor already adjacent to it.
	PotentialPeerAccounts(ctx context.Context, id string) ([]*domain.Account, error)
}

type connectionRepo struct {
	db *pgxpool.Pool
}

func NewConnectionRepo(db *pgxpool.Pool) ConnectionRepository {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) Exists(ctx context.Context, idA, idB string) (bool, error) {
	lo, hi := domain.NormalizePair(idA, idB)

	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM connections WHERE user_lo=$1 AND user_hi=$2
		)
	`, lo, hi).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query connection: %w", err)
	}
	return exists, nil
}

func (r *connectionRepo) Insert(ctx context.Context, idA, idB string) error {
	lo, hi := domain.NormalizePair(idA, idB)

	_, err := r.db.Exec(ctx, `
		INSERT INTO connections (user_lo, user_hi, created_at)
		VALUES ($1, $2, $3)
	`, lo, hi, time.Now())

	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return xerrors.ErrConnectionExists
		}
		return fmt.Errorf("failed to insert connection: %w", err)
	}
	return nil
}

func (r *connectionRepo) Delete(ctx context.Context, idA, idB string) (bool, error) {
	lo, hi := domain.NormalizePair(idA, idB)

	cmdTag, err := r.db.Exec(ctx, `
		DELETE FROM connections WHERE user_lo=$1 AND user_hi=$2
	`, lo, hi)
	if err != nil {
		return false, fmt.Errorf("failed to delete connection: %w", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (r *connectionRepo) Replace(ctx context.Context, ownerID, oldPeerID, newPeerID string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	oldLo, oldHi := domain.NormalizePair(ownerID, oldPeerID)
	cmdTag, err := tx.Exec(ctx, `
		DELETE FROM connections WHERE user_lo=$1 AND user_hi=$2
	`, oldLo, oldHi)
	if err != nil {
		return fmt.Errorf("failed to delete old connection: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return xerrors.ErrConnectionNotFound
	}

	newLo, newHi := domain.NormalizePair(ownerID, newPeerID)
	_, err = tx.Exec(ctx, `
		INSERT INTO connections (user_lo, user_hi, created_at)
		VALUES ($1, $2, $3)
	`, newLo, newHi, time.Now())
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return xerrors.ErrConnectionExists
		}
		return fmt.Errorf("failed to insert new connection: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit replace: %w", err)
	}
	return nil
}

func (r *connectionRepo) PeerAccounts(ctx context.Context, id string) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.email, a.name, a.balance, a.created_at, a.updated_at
		FROM connections c
		JOIN accounts a
		  ON a.id = CASE WHEN c.user_lo = $1 THEN c.user_hi ELSE c.user_lo END
		WHERE c.user_lo = $1 OR c.user_hi = $1
		ORDER BY a.email ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query peers: %w", err)
	}
	return scanAccountRows(rows)
}

func (r *connectionRepo) PotentialPeerAccounts(ctx context.Context, id string) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.email, a.name, a.balance, a.created_at, a.updated_at
		FROM accounts a
		WHERE a.id <> $1
		  AND NOT EXISTS (
			SELECT 1 FROM connections c
			WHERE (c.user_lo = $1 AND c.user_hi = a.id)
			   OR (c.user_lo = a.id AND c.user_hi = $1)
		  )
		ORDER BY a.email ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query potential peers: %w", err)
	}
	return scanAccountRows(rows)
}
