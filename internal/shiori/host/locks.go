package host

import (
	"context"
	"sync"
)

// channelLocks serialises work per channel id while leaving distinct
// channels fully concurrent. Entries are dropped once nobody holds or waits
// on them.
type channelLocks struct {
	mu    sync.Mutex
	locks map[string]*channelLock
}

type channelLock struct {
	sem  chan struct{}
	refs int
}

func newChannelLocks() *channelLocks {
	return &channelLocks{locks: make(map[string]*channelLock)}
}

// acquire blocks until the lock for key is held or ctx is done.
func (l *channelLocks) acquire(ctx context.Context, key string) (release func(), err error) {
	l.mu.Lock()
	cl, ok := l.locks[key]
	if !ok {
		cl = &channelLock{sem: make(chan struct{}, 1)}
		l.locks[key] = cl
	}
	cl.refs++
	l.mu.Unlock()

	select {
	case cl.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-cl.sem
				l.unref(key, cl)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, cl)
		return nil, ctx.Err()
	}
}

func (l *channelLocks) unref(key string, cl *channelLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl.refs--
	if cl.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *channelLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
