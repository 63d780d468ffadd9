package staging

import "sync"

// keyLocks hands out one mutex per ISBN. Entries are never evicted; a run
// touches at most the ISBNs in the input list.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

// lock acquires the mutex for key and returns its release function.
func (k *keyLocks) lock(key string) func() {
	l := k.get(key)
	l.Lock()
	return l.Unlock
}
