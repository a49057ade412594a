package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// APIConfig describes the backend the client talks to.
type APIConfig struct {
	// BaseURL is the API root (e.g., http://localhost:8000/api).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// LoginPath is the login surface users are sent to when the
	// session cannot be repaired.
	LoginPath string `mapstructure:"login_path" yaml:"login_path"`

	// TimeoutSec bounds every HTTP exchange.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// PreviewHeader carries the simulated role on every request.
	PreviewHeader string `mapstructure:"preview_header" yaml:"preview_header"`
}

// EndpointsConfig holds the ordered candidate paths for each operation.
// Candidates are tried in order and the first success wins. Per-item
// paths contain an {id} placeholder.
type EndpointsConfig struct {
	MessageCount             []string `mapstructure:"message_count" yaml:"message_count"`
	NotificationCount        []string `mapstructure:"notification_count" yaml:"notification_count"`
	Preview                  []string `mapstructure:"preview" yaml:"preview"`
	MarkNotificationRead     []string `mapstructure:"mark_notification_read" yaml:"mark_notification_read"`
	MarkMessageRead          []string `mapstructure:"mark_message_read" yaml:"mark_message_read"`
	MarkAllNotificationsRead []string `mapstructure:"mark_all_notifications_read" yaml:"mark_all_notifications_read"`
	MarkAllMessagesRead      []string `mapstructure:"mark_all_messages_read" yaml:"mark_all_messages_read"`
}

// SyncConfig controls the unread counter polling.
type SyncConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme        string `mapstructure:"theme" yaml:"theme"`
	PreviewLimit int    `mapstructure:"preview_limit" yaml:"preview_limit"`
}

// KeyringConfig selects where session tokens are persisted.
type KeyringConfig struct {
	Service string `mapstructure:"service" yaml:"service"`
	FileDir string `mapstructure:"file_dir" yaml:"file_dir"`
}

// StoreConfig locates the local SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Endpoints EndpointsConfig `mapstructure:"endpoints" yaml:"endpoints"`
	Sync      SyncConfig      `mapstructure:"sync" yaml:"sync"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	Keyring   KeyringConfig   `mapstructure:"keyring" yaml:"keyring"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
}

const (
	defaultBaseURL         = "http://localhost:8000/api"
	defaultPollIntervalSec = 60
	defaultPreviewLimit    = 5
)

// ConfigDir returns ~/.config/boletin, falling back to the working
// directory when the home directory cannot be determined.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "boletin")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/boletin/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultEndpoints returns the candidate lists the backend currently
// serves. Legacy paths with and without the api prefix and trailing
// slash coexist, so every list carries all four spellings.
func DefaultEndpoints() EndpointsConfig {
	return EndpointsConfig{
		MessageCount:             variants("/mensajes/unread_count"),
		NotificationCount:        variants("/notificaciones/unread_count"),
		Preview:                  variants("/notificaciones/recientes"),
		MarkNotificationRead:     variants("/notificaciones/{id}/marcar_leida"),
		MarkMessageRead:          variants("/mensajes/{id}/marcar_leido"),
		MarkAllNotificationsRead: variants("/notificaciones/marcar_todas_leidas"),
		MarkAllMessagesRead:      variants("/mensajes/marcar_todos_leidos"),
	}
}

// variants expands a path into the slash/no-slash and api/no-api
// spellings, canonical first.
func variants(path string) []string {
	return []string{
		path + "/",
		"/api" + path + "/",
		path,
		"/api" + path,
	}
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:       defaultBaseURL,
			LoginPath:     "/login",
			TimeoutSec:    30,
			PreviewHeader: "X-Preview-Role",
		},
		Endpoints: DefaultEndpoints(),
		Sync: SyncConfig{
			PollIntervalSec: defaultPollIntervalSec,
		},
		Display: DisplayConfig{
			Theme:        "default",
			PreviewLimit: defaultPreviewLimit,
		},
		Keyring: KeyringConfig{
			Service: "boletin",
			FileDir: filepath.Join(dir, "credentials"),
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "boletin.db"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// BOLETIN_* environment variables override file values
// (e.g., BOLETIN_API_BASE_URL).
func LoadConfig(path string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("boletin")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv can see every key.
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.login_path", cfg.API.LoginPath)
	v.SetDefault("api.timeout_sec", cfg.API.TimeoutSec)
	v.SetDefault("api.preview_header", cfg.API.PreviewHeader)
	v.SetDefault("sync.poll_interval_sec", cfg.Sync.PollIntervalSec)
	v.SetDefault("display.theme", cfg.Display.Theme)
	v.SetDefault("display.preview_limit", cfg.Display.PreviewLimit)
	v.SetDefault("keyring.service", cfg.Keyring.Service)
	v.SetDefault("keyring.file_dir", cfg.Keyring.FileDir)
	v.SetDefault("store.path", cfg.Store.Path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values that viper leaves behind when a file
// sets a section partially.
func (c *AppConfig) applyDefaults() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}
	if c.Sync.PollIntervalSec <= 0 {
		c.Sync.PollIntervalSec = defaultPollIntervalSec
	}
	if c.Display.PreviewLimit <= 0 {
		c.Display.PreviewLimit = defaultPreviewLimit
	}

	defaults := DefaultEndpoints()
	fill := func(dst *[]string, def []string) {
		if len(*dst) == 0 {
			*dst = def
		}
	}
	fill(&c.Endpoints.MessageCount, defaults.MessageCount)
	fill(&c.Endpoints.NotificationCount, defaults.NotificationCount)
	fill(&c.Endpoints.Preview, defaults.Preview)
	fill(&c.Endpoints.MarkNotificationRead, defaults.MarkNotificationRead)
	fill(&c.Endpoints.MarkMessageRead, defaults.MarkMessageRead)
	fill(&c.Endpoints.MarkAllNotificationsRead, defaults.MarkAllNotificationsRead)
	fill(&c.Endpoints.MarkAllMessagesRead, defaults.MarkAllMessagesRead)
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("endpoints", cfg.Endpoints)
	v.Set("sync", cfg.Sync)
	v.Set("display", cfg.Display)
	v.Set("keyring", cfg.Keyring)
	v.Set("store", cfg.Store)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
