package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/boletin/internal/api"
	"github.com/nhle/boletin/internal/credential"
	"github.com/nhle/boletin/internal/rolepreview"
	"github.com/nhle/boletin/internal/session"
)

// APIHarness is an authenticated client wired to in-memory session state.
type APIHarness struct {
	Client  *api.Client
	Tokens  *credential.TokenStore
	Preview *rolepreview.Store

	// Logins counts navigations to the login surface.
	Logins *atomic.Int32
}

// NewAPIClient builds an api.Client for baseURL (usually an httptest
// server URL plus "/api") with an access and refresh token already stored.
func NewAPIClient(t *testing.T, baseURL string) *APIHarness {
	t.Helper()

	h := &APIHarness{
		Tokens:  credential.Memory(nil),
		Preview: rolepreview.New(context.Background(), nil, nil),
		Logins:  &atomic.Int32{},
	}
	h.Tokens.Set("test-access", "test-refresh")

	httpClient, err := api.NewHTTPClient(5 * time.Second)
	if err != nil {
		t.Fatalf("creating http client: %v", err)
	}

	sessCfg := session.Config{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
		Tokens:     h.Tokens,
		Navigator:  session.NavigatorFunc(func(string) { h.Logins.Add(1) }),
	}

	h.Client, err = api.New(api.Config{
		BaseURL:    baseURL,
		HTTPClient: httpClient,
		Tokens:     h.Tokens,
		Preview:    h.Preview,
		Refresher:  session.NewRefresher(sessCfg),
		Terminator: session.NewTerminator(sessCfg),
	})
	if err != nil {
		t.Fatalf("creating api client: %v", err)
	}
	return h
}

// Eventually polls cond until it holds or the deadline passes.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
