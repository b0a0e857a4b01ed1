package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kardiguemagassa/paymybuddy/pkg/xerrors"
)

func TestLockTimesOutWhenHeld(t *testing.T) {
	l := NewPairLocker(20 * time.Millisecond)

	unlock, err := l.lock(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	defer unlock()

	if _, err := l.lock(context.Background(), "acct-1"); !errors.Is(err, xerrors.ErrLedgerBusy) {
		t.Errorf("second lock: got %v, want ErrLedgerBusy", err)
	}
}

func TestLockReleases(t *testing.T) {
	l := NewPairLocker(time.Second)

	unlock, err := l.lock(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	unlock()

	unlock, err = l.lock(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	unlock()
}

func TestLockHonorsContext(t *testing.T) {
	l := NewPairLocker(time.Minute)

	unlock, err := l.lock(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.lock(ctx, "acct-1"); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestLockAllReleasesOnPartialFailure(t *testing.T) {
	l := NewPairLocker(20 * time.Millisecond)

	// Hold the lexicographically larger id so lockAll acquires the
	// smaller one first and then fails.
	unlock, err := l.lock(context.Background(), "b")
	if err != nil {
		t.Fatalf("lock b: %v", err)
	}

	if _, err := l.lockAll(context.Background(), "a", "b"); !errors.Is(err, xerrors.ErrLedgerBusy) {
		t.Fatalf("lockAll: got %v, want ErrLedgerBusy", err)
	}

	// The partially acquired lock on a must be free again.
	unlockA, err := l.lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock a after failed lockAll: %v", err)
	}
	unlockA()
	unlock()
}

func TestLockAllCollapsesDuplicates(t *testing.T) {
	l := NewPairLocker(time.Second)

	unlock, err := l.lockAll(context.Background(), "a", "a", "a")
	if err != nil {
		t.Fatalf("lockAll with duplicates: %v", err)
	}
	unlock()
}

// Opposite orderings of the same pair must not deadlock.
func TestLockAllNoDeadlock(t *testing.T) {
	l := NewPairLocker(5 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock, err := l.lockAll(context.Background(), "a", "b")
			if err != nil {
				t.Errorf("lockAll a,b: %v", err)
				return
			}
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock, err := l.lockAll(context.Background(), "b", "a")
			if err != nil {
				t.Errorf("lockAll b,a: %v", err)
				return
			}
			unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("goroutines did not finish, likely deadlocked")
	}
}
