// Package locks provides named mutual-exclusion locks used to serialize
// check-then-act sequences such as starting a sync job.
package locks

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when the context ends before the lock is free.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out locks by name. The returned release function must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// MemoryLocker serializes holders within one process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

type memoryLock struct {
	ch      chan struct{} // buffered(1); holding the token means holding the lock
	waiters int
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memoryLock)}
}

func (m *MemoryLocker) Acquire(ctx context.Context, name string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[name]
	if !ok {
		l = &memoryLock{ch: make(chan struct{}, 1)}
		m.locks[name] = l
	}
	l.waiters++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.done(name, l)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			m.done(name, l)
		})
	}, nil
}

// done drops the entry once nobody holds or waits for it.
func (m *MemoryLocker) done(name string, l *memoryLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.waiters--
	if l.waiters == 0 {
		delete(m.locks, name)
	}
}

var _ Locker = (*MemoryLocker)(nil)
