package usecase

import (
	"context"
	"fmt"
	"sync"
)

// turnLocks serializes turns on the same session so two concurrent
// requests never answer from, or append to, the same transcript at once.
type turnLocks struct {
	mu    sync.Mutex
	slots map[string]*turnSlot
}

type turnSlot struct {
	ch      chan struct{} // holds one token while a turn is running
	waiters int
}

func newTurnLocks() *turnLocks {
	return &turnLocks{slots: make(map[string]*turnSlot)}
}

// acquire blocks until no other turn runs on id or ctx is done. The
// returned release must be called exactly once.
func (l *turnLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[id]
	if !ok {
		slot = &turnSlot{ch: make(chan struct{}, 1)}
		l.slots[id] = slot
	}
	slot.waiters++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.leave(id, slot)
			})
		}, nil
	case <-ctx.Done():
		l.leave(id, slot)
		return nil, fmt.Errorf("session %s busy: %w", id, ctx.Err())
	}
}

func (l *turnLocks) leave(id string, slot *turnSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.waiters--
	if slot.waiters == 0 {
		delete(l.slots, id)
	}
}

// held reports how many sessions have a running or waiting turn.
func (l *turnLocks) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
