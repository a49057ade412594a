package signal

import (
	"sync/atomic"
	"testing"
)

func TestBroadcasterFanOut(t *testing.T) {
	var b Broadcaster[string]

	var got []string
	b.Subscribe(func(v string) { got = append(got, "a:"+v) })
	b.Subscribe(func(v string) { got = append(got, "b:"+v) })

	b.Emit("x")

	if len(got) != 2 || got[0] != "a:x" || got[1] != "b:x" {
		t.Fatalf("got %v, want [a:x b:x]", got)
	}
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	var b Broadcaster[int]

	calls := 0
	unsubscribe := b.Subscribe(func(int) { calls++ })

	b.Emit(1)
	unsubscribe()
	unsubscribe()
	b.Emit(2)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d, want 0", b.Len())
	}
}

func TestBroadcasterNoReplay(t *testing.T) {
	var b Broadcaster[int]
	b.Emit(1)

	calls := 0
	b.Subscribe(func(int) { calls++ })

	if calls != 0 {
		t.Fatalf("late subscriber saw %d earlier emissions", calls)
	}
}

func TestBroadcasterUnsubscribeFromHandler(t *testing.T) {
	var b Broadcaster[int]

	calls := 0
	var unsubscribe func()
	unsubscribe = b.Subscribe(func(int) {
		calls++
		unsubscribe()
	})
	other := 0
	b.Subscribe(func(int) { other++ })

	b.Emit(1)
	b.Emit(2)

	if calls != 1 {
		t.Fatalf("self-removing handler ran %d times, want 1", calls)
	}
	if other != 2 {
		t.Fatalf("other handler ran %d times, want 2", other)
	}
}

func TestBroadcasterSkipsHandlerRemovedMidEmit(t *testing.T) {
	var b Broadcaster[int]

	var unsubscribeLater func()
	b.Subscribe(func(int) { unsubscribeLater() })
	calls := 0
	unsubscribeLater = b.Subscribe(func(int) { calls++ })

	b.Emit(1)

	if calls != 0 {
		t.Fatalf("handler removed earlier in the same emission ran %d times", calls)
	}
}

func TestBroadcasterUnsubscribeWhileEmitBlocked(t *testing.T) {
	var b Broadcaster[int]

	entered := make(chan struct{})
	release := make(chan struct{})
	b.Subscribe(func(int) {
		close(entered)
		<-release
	})
	var calls atomic.Int32
	unsubscribe := b.Subscribe(func(int) { calls.Add(1) })

	done := make(chan struct{})
	go func() {
		b.Emit(1)
		close(done)
	}()

	<-entered
	unsubscribe()
	close(release)
	<-done

	if n := calls.Load(); n != 0 {
		t.Fatalf("handler ran %d times after unsubscribe returned", n)
	}
}
