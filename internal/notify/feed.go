package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/boletin/internal/model"
)

// Counter is the shared unread counter the feed lowers optimistically.
// sync.Aggregator satisfies it.
type Counter interface {
	Current() model.UnreadCounters
	Override(counters model.UnreadCounters)
}

// Cache keeps the last preview across restarts. store.SQLiteStore
// satisfies it.
type Cache interface {
	ReplaceNotifications(ctx context.Context, items []model.Notification) error
	GetNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, kind model.NotificationKind, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// FeedConfig configures a Feed.
type FeedConfig struct {
	Service *Service
	Counter Counter
	Cache   Cache
	Limit   int
	Logger  *slog.Logger
}

// Feed holds the preview shown by the notification bell and applies
// read acknowledgements to it ahead of the next refresh.
type Feed struct {
	svc     *Service
	counter Counter
	cache   Cache
	limit   int
	logger  *slog.Logger

	mu         sync.Mutex
	items      []model.Notification
	generation uint64
	closed     bool
}

// NewFeed creates a Feed, seeded from the cache when one is configured.
func NewFeed(ctx context.Context, cfg FeedConfig) *Feed {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	f := &Feed{
		svc:     cfg.Service,
		counter: cfg.Counter,
		cache:   cfg.Cache,
		limit:   ClampLimit(cfg.Limit),
		logger:  cfg.Logger,
	}
	if f.cache != nil {
		items, err := f.cache.GetNotifications(ctx)
		if err != nil {
			f.logger.Debug("loading cached preview", "error", err)
		}
		f.items = items
	}
	return f
}

// Items returns a copy of the current preview.
func (f *Feed) Items() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Notification(nil), f.items...)
}

// UnreadCount is the notification badge value.
func (f *Feed) UnreadCount() int {
	if f.counter == nil {
		n := 0
		for _, it := range f.Items() {
			if it.Unread {
				n++
			}
		}
		return n
	}
	return f.counter.Current().Notifications
}

// Refresh replaces the preview with a fresh fetch. A fetch that finishes
// after Close, or after a newer Refresh started, is discarded.
func (f *Feed) Refresh(ctx context.Context) []model.Notification {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.generation++
	gen := f.generation
	f.mu.Unlock()

	items := f.svc.FetchPreview(ctx, f.limit)

	f.mu.Lock()
	if f.closed || gen != f.generation {
		f.mu.Unlock()
		return nil
	}
	f.items = items
	f.mu.Unlock()

	f.withCache(func(ctx context.Context, c Cache) error {
		return c.ReplaceNotifications(ctx, items)
	})
	return append([]model.Notification(nil), items...)
}

// Open acknowledges item when it is unread and returns the route it
// points to. A failed acknowledgement does not prevent opening. An
// acknowledgement that returns after Close leaves the feed untouched.
func (f *Feed) Open(ctx context.Context, item model.Notification) string {
	link := item.TargetLink
	if link == "" {
		link = DefaultLink
	}
	if !item.Unread || item.ID == "" || f.isClosed() {
		return link
	}

	if !f.svc.markOne(ctx, item) {
		return link
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return link
	}
	for i := range f.items {
		if f.items[i].Kind == item.Kind && f.items[i].ID == item.ID {
			f.items[i].Unread = false
		}
	}
	f.mu.Unlock()

	f.withCache(func(ctx context.Context, c Cache) error {
		return c.MarkNotificationRead(ctx, item.Kind, item.ID)
	})
	f.svc.bus.Emit()
	return link
}

// MarkAllRead acknowledges every notification. On success the badge drops
// to zero and every held item is flipped to read at once, before the
// inbox bus is told. It reports whether anything changed; with nothing
// unread, or once closed, it makes no call.
func (f *Feed) MarkAllRead(ctx context.Context) bool {
	if f.isClosed() {
		return false
	}
	if !f.hasUnread() && f.UnreadCount() == 0 {
		return false
	}
	if !f.svc.markAll(ctx) {
		return false
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return false
	}
	for i := range f.items {
		f.items[i].Unread = false
	}
	f.mu.Unlock()

	if f.counter != nil {
		f.counter.Override(f.counter.Current().With(model.CounterNotifications, 0))
	}
	f.withCache(func(ctx context.Context, c Cache) error {
		return c.MarkAllNotificationsRead(ctx)
	})
	f.svc.bus.Emit()
	return true
}

// Close discards any fetch or acknowledgement still in flight. The feed
// keeps its items but ignores later refreshes and mark-read calls.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.generation++
}

func (f *Feed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Feed) hasUnread() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.Unread {
			return true
		}
	}
	return false
}

func (f *Feed) withCache(fn func(ctx context.Context, c Cache) error) {
	if f.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx, f.cache); err != nil {
		f.logger.Debug("updating preview cache", "error", err)
	}
}
