package sync

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/boletin/internal/api"
	"github.com/nhle/boletin/internal/inbox"
	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/session"
	"github.com/nhle/boletin/internal/signal"
)

// SyncState represents the current state of the aggregator.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncFetching
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncFetching:
		return "fetching"
	case SyncError:
		return "error"
	default:
		return "unknown"
	}
}

// SyncStatus describes the last aggregation pass.
type SyncStatus struct {
	State    SyncState
	Running  bool
	LastSync time.Time
	Passes   int // completed passes, successful or not
	Error    error
}

// fetchTimeout is the maximum time allowed for a single pass.
const fetchTimeout = 30 * time.Second

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 60 * time.Second

// Source is one logical counter and the candidate paths serving it.
type Source struct {
	Name  string
	Paths []string
}

// TotalSources polls both unread messages and unread notifications, for
// the combined badge.
func TotalSources(ep model.EndpointsConfig) []Source {
	return []Source{
		{Name: model.CounterMessages, Paths: ep.MessageCount},
		{Name: model.CounterNotifications, Paths: ep.NotificationCount},
	}
}

// MessageSources polls unread messages only.
func MessageSources(ep model.EndpointsConfig) []Source {
	return []Source{
		{Name: model.CounterMessages, Paths: ep.MessageCount},
	}
}

// CounterStore keeps the last known-good counters across restarts.
// store.SQLiteStore satisfies it.
type CounterStore interface {
	SaveCounters(ctx context.Context, counters model.UnreadCounters) error
	LoadCounters(ctx context.Context) (model.UnreadCounters, error)
}

// Ticker is the part of time.Ticker the aggregator uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Config configures an Aggregator.
type Config struct {
	Client   *api.Client
	Sources  []Source
	Interval time.Duration

	// Bus, when set, triggers a pass on every inbox change.
	Bus *inbox.Bus

	// Store, when set, seeds the counters at startup and records every
	// successful pass.
	Store CounterStore

	Logger *slog.Logger

	// NewTicker replaces time.NewTicker.
	NewTicker func(time.Duration) Ticker
}

// Aggregator polls the unread counters on behalf of any number of
// subscribers. Polling starts with the first subscriber and stops with
// the last one; results of a pass still in flight at that point are
// discarded.
type Aggregator struct {
	cfg Config

	// deliverMu orders deliveries: publishes and the replay to a new
	// subscriber never interleave.
	deliverMu gosync.Mutex

	mu         gosync.Mutex
	refs       int
	generation uint64
	cancel     context.CancelFunc
	triggerCh  chan struct{}
	current    model.UnreadCounters
	reported   bool
	status     SyncStatus

	changed signal.Broadcaster[model.UnreadCounters]
}

// New creates an Aggregator. It does not poll until subscribed to.
func New(cfg Config) *Aggregator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = newTimeTicker
	}

	a := &Aggregator{cfg: cfg}
	if cfg.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		counters, err := cfg.Store.LoadCounters(ctx)
		if err != nil {
			cfg.Logger.Debug("loading cached counters", "error", err)
		} else {
			a.current = counters
			a.reported = true
		}
	}
	return a
}

// Subscribe registers handler for counter changes and returns a function
// that removes it. A handler subscribing after a value is known receives
// it immediately. Once unsubscribe returns the handler is not called
// again. Handlers must not call Subscribe or Override.
func (a *Aggregator) Subscribe(handler func(model.UnreadCounters)) (unsubscribe func()) {
	a.deliverMu.Lock()
	unsub := a.changed.Subscribe(handler)

	a.mu.Lock()
	a.refs++
	if a.refs == 1 {
		a.start()
	}
	current, reported := a.current, a.reported
	a.mu.Unlock()

	if reported {
		handler(current)
	}
	a.deliverMu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			unsub()
			a.mu.Lock()
			defer a.mu.Unlock()
			a.refs--
			if a.refs == 0 {
				a.stop()
			}
		})
	}
}

// Refresh requests an immediate pass. Requests arriving while a pass is
// running collapse into one follow-up pass.
func (a *Aggregator) Refresh() {
	a.mu.Lock()
	ch := a.triggerCh
	a.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		// A pass is already queued.
	}
}

// NotifyFocus is called when the front end regains focus.
func (a *Aggregator) NotifyFocus() {
	a.cfg.Logger.Debug("refreshing counters on focus")
	a.Refresh()
}

// NotifyVisible is called when the front end becomes visible again.
func (a *Aggregator) NotifyVisible() {
	a.cfg.Logger.Debug("refreshing counters on visibility")
	a.Refresh()
}

// Current returns the last reported counters.
func (a *Aggregator) Current() model.UnreadCounters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Override replaces the reported counters without a pass, e.g. after a
// mark-all-read succeeded. Subscribers are notified when the value
// changes.
func (a *Aggregator) Override(counters model.UnreadCounters) {
	a.publish(counters)
}

// Status returns the state of the last pass.
func (a *Aggregator) Status() SyncStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.status
	s.Running = a.cancel != nil
	return s
}

// start launches the polling loop. Callers hold a.mu.
func (a *Aggregator) start() {
	a.generation++
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.triggerCh = make(chan struct{}, 1)
	go a.loop(ctx, a.generation, a.triggerCh)
}

// stop ends the polling loop and invalidates any pass in flight.
// Callers hold a.mu.
func (a *Aggregator) stop() {
	a.generation++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.triggerCh = nil
	a.status.State = SyncIdle
}

func (a *Aggregator) loop(ctx context.Context, gen uint64, trigger <-chan struct{}) {
	if a.cfg.Bus != nil {
		unsubscribe := a.cfg.Bus.Subscribe(a.Refresh)
		defer unsubscribe()
	}

	ticker := a.cfg.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	// Do an initial pass immediately
	a.pass(ctx, gen)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			a.pass(ctx, gen)
		case <-trigger:
			a.pass(ctx, gen)
		}
	}
}

// pass fetches every source once and publishes the merged counters.
func (a *Aggregator) pass(parent context.Context, gen uint64) {
	if !a.setStatus(gen, SyncFetching, nil) {
		return
	}

	ctx, cancel := context.WithTimeout(parent, fetchTimeout)
	defer cancel()

	counts := make([]int, len(a.cfg.Sources))
	found := make([]bool, len(a.cfg.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.cfg.Sources {
		g.Go(func() error {
			n, ok, err := a.fetchCount(gctx, src)
			counts[i], found[i] = n, ok
			return err
		})
	}
	err := g.Wait()

	var counters model.UnreadCounters
	anyFound := false
	for i, src := range a.cfg.Sources {
		if found[i] {
			anyFound = true
			counters = counters.With(src.Name, counts[i])
		}
	}

	if err == nil && !anyFound {
		err = api.ErrNoCandidate
	}
	if err != nil {
		if a.setStatus(gen, SyncError, err) {
			a.cfg.Logger.Debug("counter pass failed", "error", err)
		}
		return
	}

	if !a.isCurrent(gen) {
		return
	}

	if a.cfg.Store != nil {
		if err := a.cfg.Store.SaveCounters(ctx, counters); err != nil {
			a.cfg.Logger.Debug("caching counters", "error", err)
		}
	}
	a.publishIfCurrent(gen, counters)
	a.setStatus(gen, SyncIdle, nil)
}

// fetchCount returns the count of the first candidate path that answers
// with a numeric count. The bool is false when no candidate did. Only an
// unrecoverable authentication failure is returned as an error.
func (a *Aggregator) fetchCount(ctx context.Context, src Source) (int, bool, error) {
	opts := api.RequestOptions{
		Method: http.MethodGet,
		Header: http.Header{"Cache-Control": {"no-store"}},
		Query:  url.Values{"t": {strconv.FormatInt(time.Now().UnixMilli(), 10)}},
	}
	candidates := api.Candidates(http.MethodGet, src.Paths, "", opts)

	n, _, err := api.FirstSuccess(ctx, a.cfg.Client, candidates, parseCount)
	if err != nil {
		if session.IsAuthError(err) {
			return 0, false, err
		}
		a.cfg.Logger.Debug("no count for source", "source", src.Name, "error", err)
		return 0, false, nil
	}
	return n, true, nil
}

// parseCount accepts a 2xx JSON body carrying a numeric count field.
func parseCount(resp *http.Response) (int, bool) {
	if !api.IsSuccess(resp.StatusCode) {
		return 0, false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, false
	}

	var payload struct {
		Count *float64 `json:"count"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Count == nil {
		return 0, false
	}
	return int(*payload.Count), true
}

// setStatus records the pass state unless gen is stale.
func (a *Aggregator) setStatus(gen uint64, state SyncState, err error) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		return false
	}
	a.status.State = state
	a.status.Error = err
	if state != SyncFetching {
		a.status.Passes++
	}
	if state == SyncIdle && err == nil {
		a.status.LastSync = time.Now()
	}
	return true
}

func (a *Aggregator) isCurrent(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return gen == a.generation
}

func (a *Aggregator) publishIfCurrent(gen uint64, counters model.UnreadCounters) {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	if gen != a.generation || (a.reported && a.current == counters) {
		a.mu.Unlock()
		return
	}
	a.current, a.reported = counters, true
	a.mu.Unlock()

	a.changed.Emit(counters)
}

func (a *Aggregator) publish(counters model.UnreadCounters) {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	a.mu.Lock()
	if a.reported && a.current == counters {
		a.mu.Unlock()
		return
	}
	a.current, a.reported = counters, true
	a.mu.Unlock()

	if a.cfg.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.cfg.Store.SaveCounters(ctx, counters); err != nil {
			a.cfg.Logger.Debug("caching counters", "error", err)
		}
	}
	a.changed.Emit(counters)
}
