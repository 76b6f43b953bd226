package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// tenantLocks hands out one mutex per tenant. Entries are dropped once no
// goroutine holds or waits for them.
type tenantLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*tenantLock
}

type tenantLock struct {
	ch   chan struct{}
	refs int
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{locks: make(map[uuid.UUID]*tenantLock)}
}

// Lock blocks until the tenant's lock is acquired or ctx is done.
func (l *tenantLocks) Lock(ctx context.Context, tenantID uuid.UUID) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[tenantID]
	if !ok {
		lk = &tenantLock{ch: make(chan struct{}, 1)}
		l.locks[tenantID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(tenantID, lk)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-lk.ch
			l.release(tenantID, lk)
		})
	}, nil
}

func (l *tenantLocks) release(tenantID uuid.UUID, lk *tenantLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, tenantID)
	}
}

func (l *tenantLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
