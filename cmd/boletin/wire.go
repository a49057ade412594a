package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/boletin/internal/api"
	"github.com/nhle/boletin/internal/credential"
	"github.com/nhle/boletin/internal/inbox"
	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/notify"
	"github.com/nhle/boletin/internal/rolepreview"
	"github.com/nhle/boletin/internal/session"
	"github.com/nhle/boletin/internal/store"
	appsync "github.com/nhle/boletin/internal/sync"
)

// runtime is the wired core shared by the TUI and the one-shot commands.
type runtime struct {
	cfg        *model.AppConfig
	logger     *slog.Logger
	store      *store.SQLiteStore
	tokens     *credential.TokenStore
	preview    *rolepreview.Store
	session    session.Config
	terminator *session.Terminator
	client     *api.Client
	bus        *inbox.Bus
	aggregator *appsync.Aggregator
	service    *notify.Service
	feed       *notify.Feed
}

// wire builds the core services. navigator receives every forced
// re-login; the TUI routes it to the login form.
func wire(ctx context.Context, cfg *model.AppConfig, logger *slog.Logger, navigator session.Navigator) (*runtime, error) {
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	tokens, err := credential.Open(cfg.Keyring, logger)
	if err != nil {
		logger.Warn("keyring unavailable, tokens will not survive a restart", "error", err)
		tokens = credential.Memory(logger)
	}

	httpClient, err := api.NewHTTPClient(time.Duration(cfg.API.TimeoutSec) * time.Second)
	if err != nil {
		st.Close()
		return nil, err
	}

	sessCfg := session.Config{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: httpClient,
		Tokens:     tokens,
		Navigator:  navigator,
		Logger:     logger.With("component", "session"),
	}
	terminator := session.NewTerminator(sessCfg)
	preview := rolepreview.New(ctx, st, logger.With("component", "rolepreview"))

	client, err := api.New(api.Config{
		BaseURL:       cfg.API.BaseURL,
		PreviewHeader: cfg.API.PreviewHeader,
		HTTPClient:    httpClient,
		Tokens:        tokens,
		Preview:       preview,
		Refresher:     session.NewRefresher(sessCfg),
		Terminator:    terminator,
		Logger:        logger.With("component", "api"),
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	bus := inbox.New()
	agg := appsync.New(appsync.Config{
		Client:   client,
		Sources:  appsync.TotalSources(cfg.Endpoints),
		Interval: time.Duration(cfg.Sync.PollIntervalSec) * time.Second,
		Bus:      bus,
		Store:    st,
		Logger:   logger.With("component", "sync"),
	})
	svc := notify.NewService(notify.Config{
		Client:    client,
		Endpoints: cfg.Endpoints,
		Bus:       bus,
		Logger:    logger.With("component", "notify"),
	})
	feed := notify.NewFeed(ctx, notify.FeedConfig{
		Service: svc,
		Counter: agg,
		Cache:   st,
		Limit:   cfg.Display.PreviewLimit,
		Logger:  logger.With("component", "feed"),
	})

	// Data cached for the old session must not outlive it.
	terminator.OnClear(func() {
		preview.Set("")
		agg.Override(model.UnreadCounters{})
		wipeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Wipe(wipeCtx); err != nil {
			logger.Warn("wiping local cache", "error", err)
		}
	})

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		tokens:     tokens,
		preview:    preview,
		session:    sessCfg,
		terminator: terminator,
		client:     client,
		bus:        bus,
		aggregator: agg,
		service:    svc,
		feed:       feed,
	}, nil
}

func (r *runtime) Close() {
	r.feed.Close()
	if err := r.store.Close(); err != nil {
		r.logger.Debug("closing store", "error", err)
	}
}

// waitForPass subscribes to the counters and returns once the first live
// pass has completed, successful or not.
func (r *runtime) waitForPass(ctx context.Context) (model.UnreadCounters, error) {
	before := r.aggregator.Status().Passes
	unsubscribe := r.aggregator.Subscribe(func(model.UnreadCounters) {})
	defer unsubscribe()

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return r.aggregator.Current(), ctx.Err()
		case <-tick.C:
			status := r.aggregator.Status()
			if status.Passes > before {
				return r.aggregator.Current(), status.Error
			}
		}
	}
}
