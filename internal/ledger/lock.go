package ledger

import (
	"fmt"
	"sync"
	"time"
)

// Scope identifies one ledger.
type Scope struct {
	CustomerID int64
	ProjectID  int64
}

func (s Scope) String() string {
	return fmt.Sprintf("%d/%d", s.CustomerID, s.ProjectID)
}

type scopeLock struct {
	mu   sync.Mutex
	refs int
}

// ScopeLocks serializes work per scope inside one process. Entries are
// dropped once nobody holds or waits for them.
type ScopeLocks struct {
	mu    sync.Mutex
	locks map[Scope]*scopeLock
}

func NewScopeLocks() *ScopeLocks {
	return &ScopeLocks{locks: make(map[Scope]*scopeLock)}
}

// Lock blocks until the scope is free and returns the unlock func and
// how long the caller waited.
func (l *ScopeLocks) Lock(s Scope) (unlock func(), waited time.Duration) {
	start := time.Now()

	l.mu.Lock()
	sl, ok := l.locks[s]
	if !ok {
		sl = &scopeLock{}
		l.locks[s] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	waited = time.Since(start)

	var once sync.Once
	return func() {
		once.Do(func() {
			sl.mu.Unlock()
			l.mu.Lock()
			sl.refs--
			if sl.refs == 0 {
				delete(l.locks, s)
			}
			l.mu.Unlock()
		})
	}, waited
}

// Len is the number of scopes currently tracked.
func (l *ScopeLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
