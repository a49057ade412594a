package notify

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/tests/testutil"
)

// fakeCounter stands in for the aggregator.
type fakeCounter struct {
	mu        sync.Mutex
	counters  model.UnreadCounters
	overrides int
}

func (c *fakeCounter) Current() model.UnreadCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

func (c *fakeCounter) Override(counters model.UnreadCounters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = counters
	c.overrides++
}

const previewBody = `[
	{"id":1,"tipo":"nota","titulo":"Nueva nota para Ana","meta":{"alumno_id":7},"leida":false},
	{"id":2,"titulo":"Acto","leida":false}
]`

func TestFeedOpenMarksReadOptimistically(t *testing.T) {
	b := newBackend()
	b.handle("GET /api/notificaciones/recientes/", respond(previewBody))
	b.handle("POST /api/notificaciones/1/marcar_leida/", respond(`{}`))
	svc, bus := newService(t, b)

	db := testutil.NewTestStore(t)
	feed := NewFeed(context.Background(), FeedConfig{Service: svc, Cache: db})
	ctx := context.Background()

	items := feed.Refresh(ctx)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	link := feed.Open(ctx, items[0])
	if link != "/alumnos/7/?tab=notas" {
		t.Errorf("link = %q", link)
	}
	if feed.Items()[0].Unread {
		t.Error("opened item still unread")
	}
	if bus.Emitted() != 1 {
		t.Errorf("inbox emissions = %d, want 1", bus.Emitted())
	}

	// Opening it again is a no-op: the held copy is already read.
	requests := len(b.seen())
	feed.Open(ctx, feed.Items()[0])
	if len(b.seen()) != requests {
		t.Error("re-opening a read item hit the server")
	}

	cached, err := db.GetNotifications(ctx)
	if err != nil {
		t.Fatalf("GetNotifications: %v", err)
	}
	if len(cached) != 2 || cached[0].Unread || !cached[1].Unread {
		t.Errorf("cache = %+v", cached)
	}
}

func TestFeedOpenFailureKeepsItemUnread(t *testing.T) {
	b := newBackend()
	b.handle("GET /api/notificaciones/recientes/", respond(previewBody))
	svc, _ := newService(t, b)

	feed := NewFeed(context.Background(), FeedConfig{Service: svc})
	items := feed.Refresh(context.Background())

	if link := feed.Open(context.Background(), items[1]); link != "/mensajes/hilo/2" {
		t.Errorf("link = %q", link)
	}
	if !feed.Items()[1].Unread {
		t.Error("item flipped to read although no endpoint accepted the call")
	}
}

func TestFeedMarkAllReadTwice(t *testing.T) {
	b := newBackend()
	b.handle("GET /api/notificaciones/recientes/", respond(previewBody))
	b.handle("POST /api/notificaciones/marcar_todas_leidas/", respond(`{"success":true}`))
	svc, bus := newService(t, b)

	counter := &fakeCounter{counters: model.UnreadCounters{Messages: 3, Notifications: 2}}
	feed := NewFeed(context.Background(), FeedConfig{Service: svc, Counter: counter})
	ctx := context.Background()
	feed.Refresh(ctx)

	if feed.UnreadCount() != 2 {
		t.Fatalf("UnreadCount = %d, want 2", feed.UnreadCount())
	}
	if !feed.MarkAllRead(ctx) {
		t.Fatal("first mark-all failed")
	}
	if got := counter.Current(); got != (model.UnreadCounters{Messages: 3}) {
		t.Errorf("counters after mark-all = %+v, want messages untouched and notifications zeroed", got)
	}
	for _, it := range feed.Items() {
		if it.Unread {
			t.Errorf("item %s still unread", it.ID)
		}
	}

	requests := len(b.seen())
	before := feed.Items()
	if feed.MarkAllRead(ctx) {
		t.Error("second mark-all reported a change")
	}
	if len(b.seen()) != requests {
		t.Error("second mark-all hit the server")
	}
	if counter.overrides != 1 || bus.Emitted() != 1 {
		t.Errorf("overrides = %d, emissions = %d, want 1 and 1", counter.overrides, bus.Emitted())
	}
	after := feed.Items()
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("item %d changed on the second call", i)
		}
	}
}

func TestFeedCloseDiscardsLateResults(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{})
	b := newBackend()
	b.handle("GET /api/notificaciones/recientes/", func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		respond(previewBody)(w, r)
	})
	svc, _ := newService(t, b)

	feed := NewFeed(context.Background(), FeedConfig{Service: svc})
	done := make(chan []model.Notification)
	go func() { done <- feed.Refresh(context.Background()) }()

	<-arrived
	feed.Close()
	close(release)

	select {
	case got := <-done:
		if got != nil {
			t.Errorf("late refresh returned %d items", len(got))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return")
	}
	if len(feed.Items()) != 0 {
		t.Errorf("late refresh mutated the feed: %+v", feed.Items())
	}
	if feed.Refresh(context.Background()) != nil {
		t.Error("closed feed accepted a refresh")
	}
}

func TestFeedSeedsFromCache(t *testing.T) {
	db := testutil.NewTestStore(t)
	ctx := context.Background()
	testutil.SeedPreview(t, db, model.Notification{ID: "3", Kind: model.KindNotification, Unread: true, Title: "Acto"})

	feed := NewFeed(ctx, FeedConfig{Service: NewService(Config{}), Cache: db})
	items := feed.Items()
	if len(items) != 1 || items[0].ID != "3" {
		t.Fatalf("feed not seeded from cache: %+v", items)
	}
	if feed.UnreadCount() != 1 {
		t.Errorf("UnreadCount without counter = %d, want 1", feed.UnreadCount())
	}
}

// blockingAck returns a handler that signals its arrival and answers only
// once release is closed.
func blockingAck(arrived, release chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		respond(`{"success":true}`)(w, r)
	}
}

func TestFeedCloseDiscardsLateMarkAll(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{})
	b := newBackend()
	b.handle("GET /api/notificaciones/recientes/", respond(previewBody))
	b.handle("POST /api/notificaciones/marcar_todas_leidas/", blockingAck(arrived, release))
	svc, bus := newService(t, b)

	db := testutil.NewTestStore(t)
	counter := &fakeCounter{counters: model.UnreadCounters{Messages: 1, Notifications: 2}}
	feed := NewFeed(context.Background(), FeedConfig{Service: svc, Counter: counter, Cache: db})
	feed.Refresh(context.Background())

	done := make(chan bool)
	go func() { done <- feed.MarkAllRead(context.Background()) }()

	<-arrived
	feed.Close()
	close(release)

	select {
	case changed := <-done:
		if changed {
			t.Error("mark-all finishing after Close reported a change")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("mark-all did not return")
	}

	if counter.overrides != 0 {
		t.Errorf("counter overridden %d times after Close", counter.overrides)
	}
	if got := counter.Current(); got != (model.UnreadCounters{Messages: 1, Notifications: 2}) {
		t.Errorf("counters = %+v, want them untouched", got)
	}
	for _, it := range feed.Items() {
		if !it.Unread {
			t.Errorf("item %s flipped to read after Close", it.ID)
		}
	}
	cached, err := db.GetNotifications(context.Background())
	if err != nil {
		t.Fatalf("GetNotifications: %v", err)
	}
	for _, it := range cached {
		if !it.Unread {
			t.Errorf("cached item %s flipped to read after Close", it.ID)
		}
	}
	if bus.Emitted() != 0 {
		t.Errorf("inbox emissions = %d, want 0", bus.Emitted())
	}
}

func TestFeedCloseDiscardsLateOpen(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{})
	b := newBackend()
	b.handle("GET /api/notificaciones/recientes/", respond(previewBody))
	b.handle("POST /api/notificaciones/1/marcar_leida/", blockingAck(arrived, release))
	svc, _ := newService(t, b)

	feed := NewFeed(context.Background(), FeedConfig{Service: svc})
	items := feed.Refresh(context.Background())

	done := make(chan string)
	go func() { done <- feed.Open(context.Background(), items[0]) }()

	<-arrived
	feed.Close()
	close(release)

	select {
	case link := <-done:
		if link != "/alumnos/7/?tab=notas" {
			t.Errorf("link = %q", link)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("open did not return")
	}
	if !feed.Items()[0].Unread {
		t.Error("acknowledgement finishing after Close flipped the item")
	}

	requests := len(b.seen())
	if feed.MarkAllRead(context.Background()) {
		t.Error("closed feed accepted a mark-all")
	}
	if len(b.seen()) != requests {
		t.Error("closed feed hit the server")
	}
}

func TestFeedMarkAllReadEmitsAfterLocalUpdate(t *testing.T) {
	b := newBackend()
	b.handle("GET /api/notificaciones/recientes/", respond(previewBody))
	b.handle("POST /api/notificaciones/marcar_todas_leidas/", respond(`{}`))
	svc, bus := newService(t, b)

	counter := &fakeCounter{counters: model.UnreadCounters{Notifications: 2}}
	feed := NewFeed(context.Background(), FeedConfig{Service: svc, Counter: counter})
	feed.Refresh(context.Background())

	var seenCount, seenUnread int
	bus.Subscribe(func() {
		seenCount = counter.Current().Notifications
		for _, it := range feed.Items() {
			if it.Unread {
				seenUnread++
			}
		}
	})

	if !feed.MarkAllRead(context.Background()) {
		t.Fatal("mark-all failed")
	}
	if seenCount != 0 || seenUnread != 0 {
		t.Errorf("subscriber saw count %d and %d unread items, want both zero", seenCount, seenUnread)
	}
}
