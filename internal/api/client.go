// Package api implements the authenticated request client every other
// component talks to the backend through.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/boletin/internal/model"
)

// DefaultPreviewHeader carries the simulated role.
const DefaultPreviewHeader = "X-Preview-Role"

// Tokens yields the current access token.
type Tokens interface {
	Get(kind model.TokenKind) string
}

// RolePreview yields the active preview role, "" for none.
type RolePreview interface {
	Get() string
}

// Refresher renews the access token. session.Refresher satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) bool
}

// Terminator wipes the session when it cannot be repaired.
// session.Terminator satisfies it.
type Terminator interface {
	ForceRelogin(reason string) error
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root (e.g., http://localhost:8000/api).
	BaseURL string

	// PreviewHeader overrides DefaultPreviewHeader.
	PreviewHeader string

	// HTTPClient sends the requests. Nil means NewHTTPClient(30s).
	HTTPClient *http.Client

	Tokens     Tokens
	Preview    RolePreview
	Refresher  Refresher
	Terminator Terminator
	Logger     *slog.Logger
}

// RequestOptions describes one request. The zero value is a GET.
type RequestOptions struct {
	Method string
	Header http.Header

	// Query is appended to whatever query string the path carries.
	Query url.Values

	// Body is sent as is. When nil and JSON is set, JSON is marshaled.
	Body []byte
	JSON interface{}

	// Multipart marks Body as a multipart form; the caller sets the
	// Content-Type with its boundary and no JSON default is applied.
	Multipart bool
}

// Client issues authenticated requests. It is safe for concurrent use.
type Client struct {
	baseURL       string
	previewHeader string
	httpClient    *http.Client
	tokens        Tokens
	preview       RolePreview
	refresher     Refresher
	terminator    Terminator
	logger        *slog.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Tokens == nil || cfg.Refresher == nil || cfg.Terminator == nil {
		return nil, fmt.Errorf("api client needs tokens, a refresher and a terminator")
	}
	if cfg.HTTPClient == nil {
		hc, err := NewHTTPClient(30 * time.Second)
		if err != nil {
			return nil, err
		}
		cfg.HTTPClient = hc
	}
	if cfg.PreviewHeader == "" {
		cfg.PreviewHeader = DefaultPreviewHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		previewHeader: cfg.PreviewHeader,
		httpClient:    cfg.HTTPClient,
		tokens:        cfg.Tokens,
		preview:       cfg.Preview,
		refresher:     cfg.Refresher,
		terminator:    cfg.Terminator,
		logger:        cfg.Logger,
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends the request and returns the server's response; the caller
// closes its body.
//
// A 401 or 403 triggers one token refresh followed by one rebuilt retry.
// When the session cannot be repaired (refresh fails, the retry is
// rejected again, or the server answers with a login redirect or login
// page) the tokens are cleared and a *session.AuthError is returned.
// Transport errors are returned as is.
func (c *Client) Do(ctx context.Context, path string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	resp, requested, err := c.send(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if IsLoginShaped(requested, resp) {
		discard(resp)
		return nil, c.terminator.ForceRelogin("session invalid or endpoint redirected to login")
	}
	if !isAuthStatus(resp.StatusCode) {
		return resp, nil
	}
	discard(resp)

	c.logger.Debug("request rejected, refreshing token", "path", path, "status", resp.StatusCode)
	if !c.refresher.Refresh(ctx) {
		return nil, c.terminator.ForceRelogin("not authenticated")
	}

	resp, requested, err = c.send(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if IsLoginShaped(requested, resp) {
		discard(resp)
		return nil, c.terminator.ForceRelogin("session invalid or endpoint redirected to login")
	}
	if isAuthStatus(resp.StatusCode) {
		discard(resp)
		return nil, c.terminator.ForceRelogin("not authenticated")
	}
	return resp, nil
}

// GetJSON performs a GET and decodes a 2xx JSON response into result.
func (c *Client) GetJSON(ctx context.Context, path string, result interface{}) error {
	resp, err := c.Do(ctx, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if !IsSuccess(resp.StatusCode) {
		return &StatusError{Method: http.MethodGet, Path: path, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// send builds a fresh request from path and opts, so a retry picks up the
// current access token and preview role, and issues it. It returns the
// URL that was requested for redirect detection.
func (c *Client) send(ctx context.Context, path string, opts *RequestOptions) (*http.Response, string, error) {
	req, err := c.newRequest(ctx, path, opts)
	if err != nil {
		return nil, "", err
	}

	requested := req.URL.String()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, requested, fmt.Errorf("executing request %s %s: %w", req.Method, path, err)
	}
	return resp, requested, nil
}

func (c *Client) newRequest(ctx context.Context, path string, opts *RequestOptions) (*http.Request, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(ResolveURL(c.baseURL, path))
	if err != nil {
		return nil, fmt.Errorf("parsing request URL for %s: %w", path, err)
	}
	appendQuery(u, opts.Query)

	role := ""
	if c.preview != nil {
		role = c.preview.Get()
	}
	if role != "" && method == http.MethodGet {
		appendQuery(u, url.Values{"view_as": {role}})
	}

	body := opts.Body
	if body == nil && opts.JSON != nil {
		body, err = json.Marshal(opts.JSON)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if token := c.tokens.Get(model.AccessToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if role != "" {
		req.Header.Set(c.previewHeader, role)
	}
	if body != nil && !opts.Multipart && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// StatusError is a non-2xx response from an endpoint that has no
// fallback.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned HTTP %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// discard drains and closes a response that will not be returned.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
