package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

// PairLocker serializes mutating operations per account. Every id maps
// to a buffered-channel mutex; multi-account operations always acquire
// in ascending id order, so a transfer A→B and a transfer B→A contend
// on the same first lock instead of deadlocking. Acquisition is bounded:
// a lock not obtained within the timeout surfaces xerrors.ErrLedgerBusy
// rather than queueing indefinitely.
type PairLocker struct {
	mu      sync.Mutex
	locks   map[string]chan struct{}
	timeout time.Duration
}

func NewPairLocker(timeout time.Duration) *PairLocker {
	return &PairLocker{
		locks:   make(map[string]chan struct{}),
		timeout: timeout,
	}
}

func (l *PairLocker) chanFor(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[id] = ch
	}
	return ch
}

// lock acquires a single account's lock and returns its release func.
func (l *PairLocker) lock(ctx context.Context, id string) (func(), error) {
	ch := l.chanFor(id)

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, xerrors.ErrLedgerBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lockAll acquires the locks for a set of accounts in ascending id
// order. On any failure the locks already held are released, leaving no
// partial acquisition behind. Duplicate ids are collapsed.
func (l *PairLocker) lockAll(ctx context.Context, ids ...string) (func(), error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	released := make([]func(), 0, len(unique))
	releaseAll := func() {
		for i := len(released) - 1; i >= 0; i-- {
			released[i]()
		}
	}

	for _, id := range unique {
		unlock, err := l.lock(ctx, id)
		if err != nil {
			releaseAll()
			return nil, err
		}
		released = append(released, unlock)
	}

	return releaseAll, nil
}
