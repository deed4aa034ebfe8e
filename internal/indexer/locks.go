package indexer

import "sync"

// sourceLocks serializes ingestion per source id. Entries are dropped once no
// goroutine holds or waits for them.
type sourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sourceLock
}

type sourceLock struct {
	mu   sync.Mutex
	refs int
}

func newSourceLocks() *sourceLocks {
	return &sourceLocks{locks: make(map[string]*sourceLock)}
}

// lock acquires the lock for source and returns its release func.
func (s *sourceLocks) lock(source string) func() {
	s.mu.Lock()
	l, ok := s.locks[source]
	if !ok {
		l = &sourceLock{}
		s.locks[source] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, source)
		}
		s.mu.Unlock()
	}
}

func (s *sourceLocks) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
