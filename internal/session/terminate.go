package session

import (
	"context"
	"sync"

	"github.com/nhle/boletin/internal/model"
)

// DefaultReason is used when ForceRelogin is called without a reason.
const DefaultReason = "not authenticated"

// Terminator ends the session, either because the client could not
// repair it (ForceRelogin) or because the user asked to (Logout).
type Terminator struct {
	cfg Config

	mu      sync.Mutex
	onClear []func()
}

// NewTerminator creates a Terminator.
func NewTerminator(cfg Config) *Terminator {
	return &Terminator{cfg: cfg.withDefaults()}
}

// OnClear registers fn to run every time the tokens are wiped, before
// navigation. It is used to drop cached data tied to the old session.
func (t *Terminator) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = append(t.onClear, fn)
}

// ForceRelogin clears the tokens, navigates to login and returns an
// *AuthError carrying reason, so the caller observes a failure.
func (t *Terminator) ForceRelogin(reason string) error {
	if reason == "" {
		reason = DefaultReason
	}
	t.cfg.Logger.Info("forcing re-login", "reason", reason)
	t.clear(reason)
	return &AuthError{Reason: reason}
}

// Logout revokes the refresh token and ends the cookie session on the
// server, then clears the tokens and navigates to login. The server calls
// are best-effort and independent; the local part always happens.
func (t *Terminator) Logout(ctx context.Context) {
	defer t.clear("logged out")

	if refresh := t.cfg.Tokens.Get(model.RefreshToken); refresh != "" {
		resp, err := postJSON(ctx, t.cfg.HTTPClient, t.cfg.BaseURL+"/token/blacklist/",
			map[string]string{"refresh": refresh})
		if err != nil {
			t.cfg.Logger.Warn("revoking refresh token", "error", err)
		} else {
			resp.Body.Close()
			if !isSuccess(resp.StatusCode) {
				t.cfg.Logger.Warn("revoking refresh token", "status", resp.StatusCode)
			}
		}
	}

	resp, err := postJSON(ctx, t.cfg.HTTPClient, t.cfg.BaseURL+"/auth/logout/", nil)
	if err != nil {
		t.cfg.Logger.Warn("ending cookie session", "error", err)
		return
	}
	resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		t.cfg.Logger.Warn("ending cookie session", "status", resp.StatusCode)
	}
}

func (t *Terminator) clear(reason string) {
	t.cfg.Tokens.Clear()

	t.mu.Lock()
	hooks := append([]func(){}, t.onClear...)
	t.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	t.cfg.Navigator.NavigateToLogin(reason)
}
