package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nhle/boletin/internal/session"
)

// ErrNoCandidate is returned by FirstSuccess when every candidate failed.
var ErrNoCandidate = errors.New("no candidate endpoint succeeded")

// Candidate is one way of performing an operation the backend exposes
// under several paths.
type Candidate struct {
	Path    string
	Options RequestOptions
}

// Candidates builds one candidate per path with the same method and
// options, substituting id for the {id} placeholder.
func Candidates(method string, paths []string, id string, opts RequestOptions) []Candidate {
	opts.Method = method
	out := make([]Candidate, 0, len(paths))
	for _, p := range paths {
		out = append(out, Candidate{
			Path:    strings.ReplaceAll(p, "{id}", id),
			Options: opts,
		})
	}
	return out
}

// Accept inspects a response and extracts a value from it. Returning
// false moves on to the next candidate. Accept must not close the body.
type Accept[T any] func(resp *http.Response) (T, bool)

// FirstSuccess tries candidates in order and returns the value extracted
// from the first accepted response, together with its index.
//
// Transport errors and rejected responses move on to the next candidate.
// An unrecoverable authentication failure stops the chain at once and is
// returned, since every later candidate would fail the same way.
func FirstSuccess[T any](
	ctx context.Context,
	c *Client,
	candidates []Candidate,
	accept Accept[T],
) (T, int, error) {
	var zero T
	var lastErr error

	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, -1, err
		}

		opts := cand.Options
		resp, err := c.Do(ctx, cand.Path, &opts)
		if err != nil {
			if session.IsAuthError(err) {
				return zero, -1, err
			}
			c.logger.Debug("candidate failed", "path", cand.Path, "error", err)
			lastErr = err
			continue
		}

		value, ok := accept(resp)
		discard(resp)
		if ok {
			return value, i, nil
		}
		c.logger.Debug("candidate rejected", "path", cand.Path, "status", resp.StatusCode)
		lastErr = fmt.Errorf("%s %s: HTTP %d", methodOf(opts), cand.Path, resp.StatusCode)
	}

	if lastErr != nil {
		return zero, -1, fmt.Errorf("%w: %w", ErrNoCandidate, lastErr)
	}
	return zero, -1, ErrNoCandidate
}

// AcceptOK accepts any 2xx response.
func AcceptOK(resp *http.Response) (struct{}, bool) {
	return struct{}{}, IsSuccess(resp.StatusCode)
}

func methodOf(opts RequestOptions) string {
	if opts.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(opts.Method)
}
