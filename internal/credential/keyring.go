package credential

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/99designs/keyring"

	"github.com/nhle/boletin/internal/model"
)

// OpenKeyring returns the system keyring configured for the given service.
func OpenKeyring(cfg model.KeyringConfig) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: cfg.Service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.Service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// TokenStore persists the access and refresh tokens in a keyring.
//
// Every operation is best-effort: a failing backend is logged and
// otherwise ignored, and Get reports an absent token instead of an error.
// It is safe for concurrent use; access to the ring is serialized because
// not every backend is.
type TokenStore struct {
	mu     sync.RWMutex
	ring   keyring.Keyring
	logger *slog.Logger
}

// NewTokenStore wraps ring. A nil logger uses slog.Default().
func NewTokenStore(ring keyring.Keyring, logger *slog.Logger) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenStore{ring: ring, logger: logger}
}

// Open opens the system keyring for cfg and wraps it in a TokenStore.
func Open(cfg model.KeyringConfig, logger *slog.Logger) (*TokenStore, error) {
	ring, err := OpenKeyring(cfg)
	if err != nil {
		return nil, err
	}
	return NewTokenStore(ring, logger), nil
}

// Memory returns a TokenStore that lives only as long as the process.
func Memory(logger *slog.Logger) *TokenStore {
	return NewTokenStore(keyring.NewArrayKeyring(nil), logger)
}

// Get returns the stored token of the given kind, or "" when absent or
// unreadable.
func (s *TokenStore) Get(kind model.TokenKind) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(kind)
}

func (s *TokenStore) get(kind model.TokenKind) string {
	if s.ring == nil {
		return ""
	}
	item, err := s.ring.Get(string(kind))
	if err != nil {
		if !errors.Is(err, keyring.ErrKeyNotFound) {
			s.logger.Debug("reading token", "kind", kind, "error", err)
		}
		return ""
	}
	return string(item.Data)
}

// Set stores the non-empty tokens. An empty refresh leaves the stored
// refresh token untouched.
func (s *TokenStore) Set(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if access != "" {
		s.put(model.AccessToken, access)
	}
	if refresh != "" {
		s.put(model.RefreshToken, refresh)
	}
}

// Clear removes both tokens.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kind := range []model.TokenKind{model.AccessToken, model.RefreshToken} {
		s.remove(kind)
	}
}

// Session returns both tokens as one value.
func (s *TokenStore) Session() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Session{
		AccessToken:  s.get(model.AccessToken),
		RefreshToken: s.get(model.RefreshToken),
	}
}

func (s *TokenStore) put(kind model.TokenKind, value string) {
	if s.ring == nil {
		return
	}
	err := s.ring.Set(keyring.Item{
		Key:   string(kind),
		Data:  []byte(value),
		Label: "boletin " + string(kind),
	})
	if err != nil {
		s.logger.Debug("storing token", "kind", kind, "error", err)
	}
}

func (s *TokenStore) remove(kind model.TokenKind) {
	if s.ring == nil {
		return
	}
	err := s.ring.Remove(string(kind))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		s.logger.Debug("removing token", "kind", kind, "error", err)
	}
}
