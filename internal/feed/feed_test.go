package feed

import (
	"context"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
		return 0
	}
}

func TestSubscribeDeliversCurrentSnapshot(t *testing.T) {
	f := New[int]()
	f.Publish(42)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := f.Subscribe(ctx)
	if got := recv(t, ch); got != 42 {
		t.Fatalf("snapshot = %d, want 42", got)
	}
}

func TestSubscribeBeforeFirstPublishWaits(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := f.Subscribe(ctx)
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d before first publish", v)
	case <-time.After(50 * time.Millisecond):
	}

	f.Publish(7)
	if got := recv(t, ch); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestPublishConflatesToLatest(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := f.Subscribe(ctx)

	// Nobody is reading, so intermediate values are replaced.
	f.Publish(1)
	f.Publish(2)
	f.Publish(3)

	if got := recv(t, ch); got != 3 {
		t.Fatalf("conflated value = %d, want latest 3", got)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithCancel(context.Background())

	ch := f.Subscribe(ctx)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed after cancel")
		}
	}
}

func TestIndependentSubscribers(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := f.Subscribe(ctx)
	b := f.Subscribe(ctx)

	f.Publish(5)
	if got := recv(t, a); got != 5 {
		t.Fatalf("subscriber a = %d, want 5", got)
	}
	if got := recv(t, b); got != 5 {
		t.Fatalf("subscriber b = %d, want 5", got)
	}
}
