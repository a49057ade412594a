// Package notify fetches the notification preview, normalizes it for
// display and acknowledges items as read.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nhle/boletin/internal/api"
	"github.com/nhle/boletin/internal/inbox"
	"github.com/nhle/boletin/internal/model"
)

// Preview limits accepted by the backend.
const (
	DefaultPreviewLimit = 5
	MaxPreviewLimit     = 12
)

// ClampLimit bounds a requested preview size to what the backend serves.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPreviewLimit
	}
	return max(1, min(limit, MaxPreviewLimit))
}

// Config configures a Service.
type Config struct {
	Client    *api.Client
	Endpoints model.EndpointsConfig

	// Bus receives an emission after every successful mark-read.
	Bus *inbox.Bus

	Logger *slog.Logger
}

// Service talks to the notification and message endpoints. Every
// operation is best-effort: failures are logged and reported through the
// return value, never as errors.
type Service struct {
	client    *api.Client
	endpoints model.EndpointsConfig
	bus       *inbox.Bus
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Bus == nil {
		cfg.Bus = inbox.New()
	}
	return &Service{
		client:    cfg.Client,
		endpoints: cfg.Endpoints,
		bus:       cfg.Bus,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// FetchPreview returns up to limit recent unread records, normalized. It
// returns an empty list when no candidate endpoint answers.
func (s *Service) FetchPreview(ctx context.Context, limit int) []model.Notification {
	limit = ClampLimit(limit)

	opts := api.RequestOptions{
		Header: http.Header{"Cache-Control": {"no-store"}},
		Query: url.Values{
			"solo_no_leidas": {"1"},
			"limit":          {strconv.Itoa(limit)},
			"t":              {strconv.FormatInt(s.now().UnixMilli(), 10)},
		},
	}
	candidates := api.Candidates(http.MethodGet, s.endpoints.Preview, "", opts)

	records, _, err := api.FirstSuccess(ctx, s.client, candidates, parsePreview)
	if err != nil {
		s.logger.Debug("notification preview unavailable", "error", err)
		return []model.Notification{}
	}

	if len(records) > limit {
		records = records[:limit]
	}
	fetchedAt := s.now()
	items := make([]model.Notification, 0, len(records))
	for _, r := range records {
		items = append(items, normalize(r, fetchedAt))
	}
	return items
}

// MarkOneRead acknowledges a single record. It reports whether any
// candidate endpoint accepted the call, and emits on the inbox bus when
// one did.
func (s *Service) MarkOneRead(ctx context.Context, n model.Notification) bool {
	return s.emitOn(s.markOne(ctx, n))
}

// MarkAllRead acknowledges every notification.
func (s *Service) MarkAllRead(ctx context.Context) bool {
	return s.emitOn(s.markAll(ctx))
}

// MarkAllMessagesRead acknowledges every inbox message.
func (s *Service) MarkAllMessagesRead(ctx context.Context) bool {
	return s.emitOn(s.post(ctx, "mark all messages read",
		api.Candidates(http.MethodPost, s.endpoints.MarkAllMessagesRead, "", api.RequestOptions{})))
}

// markOne and markAll acknowledge without emitting; the caller emits once
// its own state reflects the change.
func (s *Service) markOne(ctx context.Context, n model.Notification) bool {
	if n.ID == "" {
		return false
	}
	paths := s.endpoints.MarkNotificationRead
	if n.Kind == model.KindMessage {
		paths = s.endpoints.MarkMessageRead
	}
	return s.post(ctx, "mark read", api.Candidates(http.MethodPost, paths, n.ID, api.RequestOptions{}))
}

func (s *Service) markAll(ctx context.Context) bool {
	return s.post(ctx, "mark all notifications read",
		api.Candidates(http.MethodPost, s.endpoints.MarkAllNotificationsRead, "", api.RequestOptions{}))
}

func (s *Service) emitOn(ok bool) bool {
	if ok {
		s.bus.Emit()
	}
	return ok
}

func (s *Service) post(ctx context.Context, op string, candidates []api.Candidate) bool {
	_, idx, err := api.FirstSuccess(ctx, s.client, candidates, api.AcceptOK)
	if err != nil {
		s.logger.Debug(op+" failed", "error", err)
		return false
	}
	s.logger.Debug(op, "path", candidates[idx].Path)
	return true
}

// parsePreview accepts a 2xx response carrying the records as a bare
// array or wrapped under "mensajes" or "results".
func parsePreview(resp *http.Response) ([]record, bool) {
	if !api.IsSuccess(resp.StatusCode) {
		return nil, false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}

	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}

	var list []interface{}
	switch v := raw.(type) {
	case []interface{}:
		list = v
	case map[string]interface{}:
		for _, key := range []string{"mensajes", "results"} {
			if l, ok := v[key].([]interface{}); ok {
				list = l
				break
			}
		}
		if list == nil {
			return nil, false
		}
	default:
		return nil, false
	}

	records := make([]record, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			records = append(records, record(m))
		}
	}
	return records, true
}
