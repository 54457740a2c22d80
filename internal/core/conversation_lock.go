package core

import (
	"context"
	"sync"
)

// conversationLocks serializes work on a single conversation. Entries are
// reference counted and dropped once nobody holds or waits for them.
type conversationLocks struct {
	mu    sync.Mutex
	locks map[int64]*conversationLock
}

type conversationLock struct {
	sem  chan struct{}
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{locks: make(map[int64]*conversationLock)}
}

// Lock blocks until the conversation is free or ctx is done. The returned
// function releases the lock.
func (c *conversationLocks) Lock(ctx context.Context, conversationID int64) (func(), error) {
	c.mu.Lock()
	l, ok := c.locks[conversationID]
	if !ok {
		l = &conversationLock{sem: make(chan struct{}, 1)}
		c.locks[conversationID] = l
	}
	l.refs++
	c.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			c.release(conversationID, l)
		}, nil
	case <-ctx.Done():
		c.release(conversationID, l)
		return nil, ctx.Err()
	}
}

func (c *conversationLocks) release(conversationID int64, l *conversationLock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, conversationID)
	}
}
