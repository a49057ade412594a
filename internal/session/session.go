// Package session owns the token lifecycle: password login, the
// refresh-grant exchange, forced re-login and user logout.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/boletin/internal/model"
)

// TokenStore persists the access and refresh tokens. Implementations are
// best-effort: Get reports "" instead of failing, Set skips empty values.
// credential.TokenStore satisfies it.
type TokenStore interface {
	Get(kind model.TokenKind) string
	Set(access, refresh string)
	Clear()
}

// Navigator moves the user to the login surface.
type Navigator interface {
	NavigateToLogin(reason string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(reason string)

// NavigateToLogin calls f(reason).
func (f NavigatorFunc) NavigateToLogin(reason string) { f(reason) }

// AuthError reports an authentication failure that could not be repaired.
// By the time it is returned the tokens are already cleared.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authentication required: " + e.Reason
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Config carries the collaborators shared by the refresher, the
// terminator and Login.
type Config struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string

	// HTTPClient is used for the token endpoints. It should share its
	// cookie jar with the authenticated client so logout can end the
	// cookie session. Nil means a client with a 30s timeout.
	HTTPClient *http.Client

	Tokens    TokenStore
	Navigator Navigator
	Logger    *slog.Logger
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Navigator == nil {
		c.Navigator = NavigatorFunc(func(string) {})
	}
	return c
}

// postJSON sends body as JSON to the API path and returns the raw response.
// The caller closes the body.
func postJSON(
	ctx context.Context,
	client *http.Client,
	url string,
	body interface{},
) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request POST %s: %w", url, err)
	}
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
