package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/internal/repository"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

// ConnectionUsecase maintains the undirected connection graph that
// gates transfers. Edges are symmetric by construction: every pair is
// stored once under its sorted ids, so there is no directed state to
// keep consistent.
type ConnectionUsecase struct {
	accountRepo repository.AccountRepository
	connRepo    repository.ConnectionRepository
	locks       *PairLocker
	log         *zap.Logger
}

func NewConnectionUsecase(
	accountRepo repository.AccountRepository,
	connRepo repository.ConnectionRepository,
	locks *PairLocker,
	log *zap.Logger,
) *ConnectionUsecase {
	return &ConnectionUsecase{
		accountRepo: accountRepo,
		connRepo:    connRepo,
		locks:       locks,
		log:         log,
	}
}

// AreConnected reports whether two accounts share an edge. An account
// is never connected to itself.
func (uc *ConnectionUsecase) AreConnected(ctx context.Context, emailA, emailB string) (bool, error) {
	a, err := uc.accountRepo.GetByEmail(ctx, emailA)
	if err != nil {
		return false, fmt.Errorf("account %s: %w", emailA, err)
	}
	b, err := uc.accountRepo.GetByEmail(ctx, emailB)
	if err != nil {
		return false, fmt.Errorf("account %s: %w", emailB, err)
	}
	if a.ID == b.ID {
		return false, nil
	}
	return uc.connRepo.Exists(ctx, a.ID, b.ID)
}

// Add creates the edge between owner and peer. Adding an edge that
// already exists, in either orientation, is a conflict.
func (uc *ConnectionUsecase) Add(ctx context.Context, ownerEmail, peerEmail string) error {
	if ownerEmail == peerEmail {
		return xerrors.ErrSelfConnection
	}

	owner, err := uc.accountRepo.GetByEmail(ctx, ownerEmail)
	if err != nil {
		return fmt.Errorf("account %s: %w", ownerEmail, err)
	}
	peer, err := uc.accountRepo.GetByEmail(ctx, peerEmail)
	if err != nil {
		return fmt.Errorf("account %s: %w", peerEmail, err)
	}
	if owner.ID == peer.ID {
		return xerrors.ErrSelfConnection
	}

	unlock, err := uc.locks.lockAll(ctx, owner.ID, peer.ID)
	if err != nil {
		return err
	}
	defer unlock()

	exists, err := uc.connRepo.Exists(ctx, owner.ID, peer.ID)
	if err != nil {
		return fmt.Errorf("failed to check connection: %w", err)
	}
	if exists {
		return xerrors.ErrConnectionExists
	}

	if err := uc.connRepo.Insert(ctx, owner.ID, peer.ID); err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}

	uc.log.Info("connection added",
		zap.String("owner_id", owner.ID),
		zap.String("peer_id", peer.ID),
	)
	return nil
}

// Remove deletes the edge between owner and peer. Removing an edge
// that does not exist is a no-op, not an error.
func (uc *ConnectionUsecase) Remove(ctx context.Context, ownerEmail, peerEmail string) error {
	owner, err := uc.accountRepo.GetByEmail(ctx, ownerEmail)
	if err != nil {
		return fmt.Errorf("account %s: %w", ownerEmail, err)
	}
	peer, err := uc.accountRepo.GetByEmail(ctx, peerEmail)
	if err != nil {
		return fmt.Errorf("account %s: %w", peerEmail, err)
	}

	unlock, err := uc.locks.lockAll(ctx, owner.ID, peer.ID)
	if err != nil {
		return err
	}
	defer unlock()

	removed, err := uc.connRepo.Delete(ctx, owner.ID, peer.ID)
	if err != nil {
		return fmt.Errorf("failed to remove connection: %w", err)
	}
	if !removed {
		uc.log.Debug("connection removal was a no-op",
			zap.String("owner_id", owner.ID),
			zap.String("peer_id", peer.ID),
		)
		return nil
	}

	uc.log.Info("connection removed",
		zap.String("owner_id", owner.ID),
		zap.String("peer_id", peer.ID),
	)
	return nil
}

// Replace swaps one of owner's edges for another in a single step:
// either both the removal of the old edge and the addition of the new
// one happen, or neither does.
func (uc *ConnectionUsecase) Replace(ctx context.Context, ownerEmail, oldPeerEmail, newPeerEmail string) error {
	if ownerEmail == newPeerEmail {
		return xerrors.ErrSelfConnection
	}

	owner, err := uc.accountRepo.GetByEmail(ctx, ownerEmail)
	if err != nil {
		return fmt.Errorf("account %s: %w", ownerEmail, err)
	}
	oldPeer, err := uc.accountRepo.GetByEmail(ctx, oldPeerEmail)
	if err != nil {
		return fmt.Errorf("account %s: %w", oldPeerEmail, err)
	}
	newPeer, err := uc.accountRepo.GetByEmail(ctx, newPeerEmail)
	if err != nil {
		return fmt.Errorf("account %s: %w", newPeerEmail, err)
	}
	if owner.ID == newPeer.ID {
		return xerrors.ErrSelfConnection
	}

	unlock, err := uc.locks.lockAll(ctx, owner.ID, oldPeer.ID, newPeer.ID)
	if err != nil {
		return err
	}
	defer unlock()

	oldExists, err := uc.connRepo.Exists(ctx, owner.ID, oldPeer.ID)
	if err != nil {
		return fmt.Errorf("failed to check connection: %w", err)
	}
	if !oldExists {
		return xerrors.ErrConnectionNotFound
	}

	newExists, err := uc.connRepo.Exists(ctx, owner.ID, newPeer.ID)
	if err != nil {
		return fmt.Errorf("failed to check connection: %w", err)
	}
	if newExists {
		return xerrors.ErrConnectionExists
	}

	if err := uc.connRepo.Replace(ctx, owner.ID, oldPeer.ID, newPeer.ID); err != nil {
		return fmt.Errorf("failed to replace connection: %w", err)
	}

	uc.log.Info("connection replaced",
		zap.String("owner_id", owner.ID),
		zap.String("old_peer_id", oldPeer.ID),
		zap.String("new_peer_id", newPeer.ID),
	)
	return nil
}

// Connections lists the accounts the given account is connected to.
func (uc *ConnectionUsecase) Connections(ctx context.Context, email string) ([]domain.AccountSummary, error) {
	account, err := uc.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", email, err)
	}

	peers, err := uc.connRepo.PeerAccounts(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	return domain.Summaries(peers), nil
}

// PotentialConnections lists the accounts the given account could
// still connect to: everyone except itself and its current peers.
func (uc *ConnectionUsecase) PotentialConnections(ctx context.Context, email string) ([]domain.AccountSummary, error) {
	account, err := uc.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", email, err)
	}

	candidates, err := uc.connRepo.PotentialPeerAccounts(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list potential connections: %w", err)
	}
	return domain.Summaries(candidates), nil
}
