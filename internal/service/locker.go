package service

import (
	"context"
	"fmt"
	"sync"
)

// CartLocker serializes operations on one customer's cart
type CartLocker interface {
	// Lock blocks until the customer's lock is held or ctx is done. The
	// returned func releases the lock and is safe to call more than once.
	Lock(ctx context.Context, customerID int64) (unlock func(), err error)
}

// LocalLocker is an in-process keyed lock
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[int64]*keyLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, customerID int64) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[customerID]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[customerID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(customerID, kl)
		return nil, fmt.Errorf("acquire cart lock for customer %d: %w", customerID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(customerID, kl)
		})
	}, nil
}

func (l *LocalLocker) release(customerID int64, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, customerID)
	}
}
