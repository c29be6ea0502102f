package executor

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// accountLocks serializes work per account address. Entries are dropped once
// no goroutine holds or waits for them.
type accountLocks struct {
	mu    sync.Mutex
	locks map[common.Address]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[common.Address]*accountLock)}
}

func (l *accountLocks) lock(addr common.Address) func() {
	l.mu.Lock()
	entry, ok := l.locks[addr]
	if !ok {
		entry = &accountLock{}
		l.locks[addr] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, addr)
		}
		l.mu.Unlock()
	}
}

func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
