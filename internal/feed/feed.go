// Package feed implements the publish/subscribe snapshot stream backing the
// repositories' Watch operations. Subscribers get the current snapshot on
// subscribe and a snapshot per publish. Delivery conflates: a slow consumer
// skips intermediate snapshots and always observes the latest one.
package feed

import (
	"context"
	"sync"
)

type Feed[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
	last T
	has  bool
}

func New[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Publish records v as the latest snapshot and offers it to every subscriber.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = v
	f.has = true
	for _, ch := range f.subs {
		Send(ch, v)
	}
}

// Subscribe returns an unbounded snapshot stream. The channel closes only
// when ctx is cancelled, never because the feed is idle.
func (f *Feed[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	if f.has {
		Send(ch, f.last)
	}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		// Closing under the lock keeps Publish from racing a send
		// against the close.
		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

// Send offers v on a capacity-1 channel, replacing a pending value rather
// than blocking.
func Send[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
