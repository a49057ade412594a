package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nhle/boletin/internal/model"
)

// LoginError is returned when the server rejects the credentials.
type LoginError struct {
	Status int
	Detail string
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login rejected (HTTP %d): %s", e.Status, e.Detail)
}

// Login exchanges a username and password for a token pair and stores it.
// Any previous tokens are cleared first so a failed attempt never leaves
// a stale session behind.
func Login(ctx context.Context, cfg Config, username, password string) error {
	cfg = cfg.withDefaults()
	cfg.Tokens.Clear()

	resp, err := postJSON(ctx, cfg.HTTPClient, cfg.BaseURL+"/token/", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading login response: %w", err)
	}

	if !isSuccess(resp.StatusCode) {
		var payload struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &payload)
		if payload.Detail == "" {
			payload.Detail = "invalid credentials"
		}
		return &LoginError{Status: resp.StatusCode, Detail: payload.Detail}
	}

	var sess model.Session
	if err := json.Unmarshal(body, &sess); err != nil {
		return fmt.Errorf("parsing login response: %w", err)
	}
	if sess.AccessToken == "" {
		return fmt.Errorf("login response carried no access token")
	}

	cfg.Tokens.Set(sess.AccessToken, sess.RefreshToken)
	cfg.Logger.Info("logged in", "username", username)
	return nil
}
