package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nhle/boletin/internal/inbox"
	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/tests/testutil"
)

// backend is a scripted notification API. Handlers are keyed by
// "METHOD path".
type backend struct {
	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []string
	queries  []string
}

func newBackend() *backend {
	return &backend{routes: map[string]http.HandlerFunc{}}
}

func (b *backend) handle(route string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[route] = h
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	b.mu.Lock()
	b.requests = append(b.requests, route)
	b.queries = append(b.queries, r.URL.RawQuery)
	h := b.routes[route]
	b.mu.Unlock()

	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (b *backend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func newService(t *testing.T, b *backend) (*Service, *inbox.Bus) {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	h := testutil.NewAPIClient(t, srv.URL+"/api")
	bus := inbox.New()
	return NewService(Config{
		Client:    h.Client,
		Endpoints: model.DefaultEndpoints(),
		Bus:       bus,
	}), bus
}

func TestFetchPreviewShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare array", `[{"id":1,"titulo":"Nueva nota para Ana","leida":false},{"id":2,"titulo":"Aviso","leida":true}]`},
		{"wrapped in mensajes", `{"mensajes":[{"id":1,"titulo":"Nueva nota para Ana"},{"id":2,"titulo":"Aviso","leida":true}]}`},
		{"wrapped in results", `{"count":2,"results":[{"id":1,"titulo":"Nueva nota para Ana"},{"id":2,"titulo":"Aviso","leida":true}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend()
			b.handle("GET /api/notificaciones/recientes/", respond(tt.body))
			svc, _ := newService(t, b)

			items := svc.FetchPreview(context.Background(), 5)
			if len(items) != 2 {
				t.Fatalf("got %d items, want 2", len(items))
			}
			if items[0].ID != "1" || items[0].Title != "Ana recibió una nota" || !items[0].Unread {
				t.Errorf("first item = %+v", items[0])
			}
			if items[1].Unread {
				t.Errorf("second item should be read: %+v", items[1])
			}
		})
	}
}

func TestFetchPreviewQueryAndLimit(t *testing.T) {
	b := newBackend()
	b.handle("GET /api/notificaciones/recientes/", respond(`[{"id":1},{"id":2},{"id":3}]`))
	svc, _ := newService(t, b)

	items := svc.FetchPreview(context.Background(), 2)
	if len(items) != 2 {
		t.Errorf("limit not applied to the response: %d items", len(items))
	}

	svc.FetchPreview(context.Background(), 50)

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queries) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(b.queries))
	}
	for i, want := range []string{"limit=2", "limit=12"} {
		q := b.queries[i]
		if !strings.Contains(q, want) || !strings.Contains(q, "solo_no_leidas=1") || !strings.Contains(q, "t=") {
			t.Errorf("request %d query = %q, want %s, solo_no_leidas and t", i, q, want)
		}
	}
}

func TestFetchPreviewFallsBackAndNeverFails(t *testing.T) {
	b := newBackend()
	b.handle("GET /api/notificaciones/recientes/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	b.handle("GET /api/notificaciones/recientes", respond(`{"detail":"not a list"}`))
	svc, _ := newService(t, b)

	items := svc.FetchPreview(context.Background(), 5)
	if items == nil || len(items) != 0 {
		t.Errorf("expected an empty, non-nil list, got %#v", items)
	}
	if n := len(b.seen()); n != 4 {
		t.Errorf("expected every candidate to be tried, got %d requests", n)
	}

	b.handle("GET /api/notificaciones/recientes", respond(`[{"id":9}]`))
	if items := svc.FetchPreview(context.Background(), 5); len(items) != 1 || items[0].ID != "9" {
		t.Errorf("fallback candidate not used: %+v", items)
	}
}

func TestMarkOneReadByKind(t *testing.T) {
	b := newBackend()
	b.handle("POST /api/notificaciones/5/marcar_leida/", respond(`{"success":true,"updated":1}`))
	b.handle("POST /api/mensajes/6/marcar_leido", respond(`{}`))
	svc, bus := newService(t, b)

	if !svc.MarkOneRead(context.Background(), model.Notification{ID: "5", Kind: model.KindNotification}) {
		t.Error("notification mark-read failed")
	}
	if !svc.MarkOneRead(context.Background(), model.Notification{ID: "6", Kind: model.KindMessage}) {
		t.Error("message mark-read failed")
	}
	if bus.Emitted() != 2 {
		t.Errorf("inbox emissions = %d, want 2", bus.Emitted())
	}

	// Message candidates: slash, api+slash, bare; the bare one wins.
	seen := b.seen()
	if got := seen[len(seen)-1]; got != "POST /api/mensajes/6/marcar_leido" {
		t.Errorf("last request = %q", got)
	}
}

func TestMarkReadGivesUpSilently(t *testing.T) {
	b := newBackend()
	svc, bus := newService(t, b)

	if svc.MarkOneRead(context.Background(), model.Notification{ID: "5"}) {
		t.Error("expected failure when every candidate is missing")
	}
	if svc.MarkAllRead(context.Background()) {
		t.Error("expected mark-all failure when every candidate is missing")
	}
	if svc.MarkOneRead(context.Background(), model.Notification{}) {
		t.Error("expected failure for a record without id")
	}
	if bus.Emitted() != 0 {
		t.Errorf("failed acknowledgements emitted %d inbox events", bus.Emitted())
	}
	if n := len(b.seen()); n != 8 {
		t.Errorf("expected 8 attempts, got %d", n)
	}
}

func TestMarkAllMessagesRead(t *testing.T) {
	b := newBackend()
	b.handle("POST /api/mensajes/marcar_todos_leidos/", respond(`{}`))
	svc, bus := newService(t, b)

	if !svc.MarkAllMessagesRead(context.Background()) {
		t.Fatal("mark all messages read failed")
	}
	if bus.Emitted() != 1 {
		t.Errorf("inbox emissions = %d, want 1", bus.Emitted())
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{-3: 5, 0: 5, 1: 1, 7: 7, 12: 12, 13: 12} {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
