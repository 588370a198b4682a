package storage

import (
	"context"
	"fmt"
	"time"
)

// waiter is a blocking pop parked on one key.
// ready has room for one signal so a push never blocks on a slow waiter.
type waiter struct {
	ready chan struct{}
}

func newWaiter() *waiter {
	return &waiter{ready: make(chan struct{}, 1)}
}

// addWaiterLocked registers w for key. The caller must hold the shard write lock.
func (sh *shard) addWaiterLocked(key string, w *waiter) {
	sh.waiters[key] = append(sh.waiters[key], w)
}

// removeWaiterLocked deregisters w from key if a push has not already done so.
// The caller must hold the shard write lock.
func (sh *shard) removeWaiterLocked(key string, w *waiter) {
	ws := sh.waiters[key]
	for i, candidate := range ws {
		if candidate == w {
			ws = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(ws) == 0 {
		delete(sh.waiters, key)
		return
	}
	sh.waiters[key] = ws
}

// wakeLocked signals and deregisters every waiter parked on key.
// Waiters on other keys are untouched. The caller must hold the shard write lock.
func (sh *shard) wakeLocked(key string) {
	ws, ok := sh.waiters[key]
	if !ok {
		return
	}
	delete(sh.waiters, key)

	for _, w := range ws {
		select {
		case w.ready <- struct{}{}:
		default:
		}
	}
}

// BlockingPop pops the tail of the list at key, waiting up to timeout for an
// element to arrive. A zero timeout tries once without waiting.
//
// It returns (nil, false, nil) when the timeout elapses with nothing popped,
// ctx.Err() if ctx is done first, and ErrClosed if the storage is closed
// while waiting. ErrWrongType is returned immediately for scalar keys.
func (s *MemoryStorage) BlockingPop(ctx context.Context, key string, timeout time.Duration) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	if timeout < 0 {
		return nil, false, fmt.Errorf("%w: negative timeout %s", ErrInvalidArgument, timeout)
	}
	if s.closed() {
		return nil, false, ErrClosed
	}

	sh := s.shardFor(key)

	sh.mu.Lock()
	value, ok, err := s.popLocked(sh, key, s.clock.Now())
	if err != nil || ok || timeout == 0 {
		sh.mu.Unlock()
		return value, ok, err
	}
	if err := ctx.Err(); err != nil {
		sh.mu.Unlock()
		return nil, false, err
	}

	// Registered before the lock is released: a push can only run after
	// this point and will find the waiter.
	w := newWaiter()
	sh.addWaiterLocked(key, w)
	sh.mu.Unlock()

	timer := s.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-w.ready:
		case <-timer.Chan():
			return s.finishWait(sh, key, w)
		case <-ctx.Done():
			s.cancelWait(sh, key, w)
			return nil, false, ctx.Err()
		case <-s.closing:
			s.cancelWait(sh, key, w)
			return nil, false, ErrClosed
		}

		sh.mu.Lock()
		value, ok, err = s.popLocked(sh, key, s.clock.Now())
		if err != nil || ok {
			sh.mu.Unlock()
			return value, ok, err
		}
		// Another waiter took the element; park again for the time left.
		sh.addWaiterLocked(key, w)
		sh.mu.Unlock()
	}
}

// finishWait deregisters w and makes a last pop attempt, so a push that
// landed just before the deadline is still observed.
func (s *MemoryStorage) finishWait(sh *shard, key string, w *waiter) ([]byte, bool, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.removeWaiterLocked(key, w)
	return s.popLocked(sh, key, s.clock.Now())
}

func (s *MemoryStorage) cancelWait(sh *shard, key string, w *waiter) {
	sh.mu.Lock()
	sh.removeWaiterLocked(key, w)
	sh.mu.Unlock()
}

// WaiterCount returns the number of blocking pops parked on key
func (s *MemoryStorage) WaiterCount(key string) int {
	sh := s.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.waiters[key])
}
