package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kardiguemagassa/paymybuddy/internal/domain"
	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

type pair struct {
	lo, hi string
}

// Store is an in-memory implementation of the account, connection,
// transaction and ledger repositories. It is safe for concurrent use
// and backs the engine tests and local development; data is lost on
// restart.
type Store struct {
	mu          sync.RWMutex
	accounts    map[string]*domain.Account
	byEmail     map[string]string
	connections map[pair]time.Time
	txns        []*domain.Transaction

	// applyErr, when set, makes the next ApplyTransfer fail without
	// touching any state, simulating a persistence outage mid-transfer.
	applyErr error
}

func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]*domain.Account),
		byEmail:     make(map[string]string),
		connections: make(map[pair]time.Time),
	}
}

// FailNextApplyTransfer arms a one-shot persistence failure.
func (s *Store) FailNextApplyTransfer(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyErr = err
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	return &cp
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	cp := *t
	return &cp
}

// --- AccountRepository ---

func (s *Store) Create(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[account.Email]; exists {
		return xerrors.ErrEmailAlreadyInUse
	}

	now := time.Now()
	if account.ID == "" {
		account.ID = domain.NewID()
	}
	account.CreatedAt = now
	account.UpdatedAt = now

	s.accounts[account.ID] = cloneAccount(account)
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, xerrors.ErrAccountNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, xerrors.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (s *Store) List(ctx context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return xerrors.ErrAccountNotFound
	}
	a.Balance = balance
	a.UpdatedAt = time.Now()
	return nil
}

// --- ConnectionRepository ---

func (s *Store) Exists(ctx context.Context, idA, idB string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := domain.NormalizePair(idA, idB)
	_, ok := s.connections[pair{lo, hi}]
	return ok, nil
}

func (s *Store) Insert(ctx context.Context, idA, idB string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(idA, idB)
}

func (s *Store) insertLocked(idA, idB string) error {
	lo, hi := domain.NormalizePair(idA, idB)
	if _, ok := s.connections[pair{lo, hi}]; ok {
		return xerrors.ErrConnectionExists
	}
	s.connections[pair{lo, hi}] = time.Now()
	return nil
}

func (s *Store) Delete(ctx context.Context, idA, idB string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi := domain.NormalizePair(idA, idB)
	if _, ok := s.connections[pair{lo, hi}]; !ok {
		return false, nil
	}
	delete(s.connections, pair{lo, hi})
	return true, nil
}

func (s *Store) Replace(ctx context.Context, ownerID, oldPeerID, newPeerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldLo, oldHi := domain.NormalizePair(ownerID, oldPeerID)
	if _, ok := s.connections[pair{oldLo, oldHi}]; !ok {
		return xerrors.ErrConnectionNotFound
	}

	newLo, newHi := domain.NormalizePair(ownerID, newPeerID)
	if _, ok := s.connections[pair{newLo, newHi}]; ok {
		return xerrors.ErrConnectionExists
	}

	delete(s.connections, pair{oldLo, oldHi})
	s.connections[pair{newLo, newHi}] = time.Now()
	return nil
}

func (s *Store) PeerAccounts(ctx context.Context, id string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Account
	for p := range s.connections {
		switch id {
		case p.lo:
			if a, ok := s.accounts[p.hi]; ok {
				out = append(out, cloneAccount(a))
			}
		case p.hi:
			if a, ok := s.accounts[p.lo]; ok {
				out = append(out, cloneAccount(a))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) PotentialPeerAccounts(ctx context.Context, id string) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Account
	for _, a := range s.accounts {
		if a.ID == id {
			continue
		}
		lo, hi := domain.NormalizePair(id, a.ID)
		if _, connected := s.connections[pair{lo, hi}]; connected {
			continue
		}
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// --- LedgerRepository ---

func (s *Store) ApplyTransfer(ctx context.Context, sender, receiver *domain.Account, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applyErr != nil {
		err := s.applyErr
		s.applyErr = nil
		return err
	}

	storedSender, ok := s.accounts[sender.ID]
	if !ok {
		return xerrors.ErrAccountNotFound
	}
	storedReceiver, ok := s.accounts[receiver.ID]
	if !ok {
		return xerrors.ErrAccountNotFound
	}

	storedSender.Balance = sender.Balance
	storedSender.UpdatedAt = txn.CreatedAt
	storedReceiver.Balance = receiver.Balance
	storedReceiver.UpdatedAt = txn.CreatedAt
	s.txns = append(s.txns, cloneTransaction(txn))
	return nil
}

// --- TransactionRepository ---

func (s *Store) ListForAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Transaction
	for _, t := range s.txns {
		if t.SenderID == accountID || t.ReceiverID == accountID {
			matched = append(matched, t)
		}
	}
	// Newest first, like the database-backed view.
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	out := make([]*domain.Transaction, 0, end-offset)
	for _, t := range matched[offset:end] {
		out = append(out, cloneTransaction(t))
	}
	return out, total, nil
}
