package orchestration

import "sync"

// PartitionLocks serializes writers per partition key. Distinct keys never
// block each other.
type PartitionLocks struct {
	mu    sync.Mutex
	locks map[string]*partitionLock
}

type partitionLock struct {
	mu   sync.Mutex
	refs int
}

func NewPartitionLocks() *PartitionLocks {
	return &PartitionLocks{locks: make(map[string]*partitionLock)}
}

// Lock blocks until key is free and returns the matching unlock.
func (p *PartitionLocks) Lock(key string) func() {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &partitionLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *PartitionLocks) held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}
