package session

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nhle/boletin/internal/model"
)

// refreshTimeout bounds a shared exchange, which outlives the caller
// that started it.
const refreshTimeout = 30 * time.Second

// Refresher exchanges the stored refresh token for a new access token.
//
// Concurrent callers share one in-flight exchange: when several requests
// are rejected at the same moment only one refresh request reaches the
// server and all of them observe its outcome.
type Refresher struct {
	cfg      Config
	group    singleflight.Group
	attempts atomic.Int64
}

// NewRefresher creates a Refresher.
func NewRefresher(cfg Config) *Refresher {
	return &Refresher{cfg: cfg.withDefaults()}
}

// Refresh reports whether a usable access token was stored. It makes no
// network call when no refresh token is present, and leaves the stored
// tokens untouched on any failure. A caller whose ctx ends gets false,
// but the exchange carries on for the callers sharing it.
func (r *Refresher) Refresh(ctx context.Context) bool {
	if r.cfg.Tokens.Get(model.RefreshToken) == "" {
		return false
	}

	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan("refresh", func() (interface{}, error) {
		exCtx, cancel := context.WithTimeout(shared, refreshTimeout)
		defer cancel()
		return r.exchange(exCtx), nil
	})

	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

// Attempts returns how many refresh exchanges were sent to the server.
func (r *Refresher) Attempts() int64 {
	return r.attempts.Load()
}

func (r *Refresher) exchange(ctx context.Context) bool {
	refresh := r.cfg.Tokens.Get(model.RefreshToken)
	if refresh == "" {
		return false
	}

	r.attempts.Add(1)
	resp, err := postJSON(ctx, r.cfg.HTTPClient, r.cfg.BaseURL+"/token/refresh/",
		map[string]string{"refresh": refresh})
	if err != nil {
		r.cfg.Logger.Debug("token refresh failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		r.cfg.Logger.Debug("token refresh rejected", "status", resp.StatusCode)
		return false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		r.cfg.Logger.Debug("reading refresh response", "error", err)
		return false
	}

	var sess model.Session
	if err := json.Unmarshal(body, &sess); err != nil || sess.AccessToken == "" {
		r.cfg.Logger.Debug("refresh response carried no access token")
		return false
	}

	// The server only rotates the refresh token when configured to.
	if sess.RefreshToken == "" {
		sess.RefreshToken = refresh
	}
	r.cfg.Tokens.Set(sess.AccessToken, sess.RefreshToken)
	r.cfg.Logger.Debug("access token refreshed", "rotated_refresh", sess.RefreshToken != refresh)
	return true
}
