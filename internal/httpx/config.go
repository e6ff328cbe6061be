package httpx

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"greenlist/internal/linkguard/liveness"
)

const (
	defaultHTTPAddr            = ":8080"
	defaultShutdownTimeout     = 5 * time.Second
	defaultDBMaxOpenConns      = 10
	defaultDBMaxIdleConns      = 10
	defaultDBConnMaxLifetime   = 30 * time.Minute
	defaultDBPingTimeout       = 10 * time.Second
	defaultChatModel           = "gpt-5-chat-latest"
	defaultEmbeddingModel      = "text-embedding-3-large"
	defaultEmbeddingDimensions = 3072
	defaultLivenessSweep       = 10 * time.Minute
	defaultURLsFile            = "urls.json"
	defaultLogLevel            = "info"
)

type RuntimeConfig struct {
	Service  string
	LogLevel string
	Database DatabaseConfig
	HTTP     HTTPConfig
	Search   SearchConfig
	OpenAI   OpenAIConfig
	Links    LinksConfig
	Loader   LoaderConfig
	Expose   bool
}

type DatabaseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// SearchConfig is optional; an empty URL disables the search index.
type SearchConfig struct {
	URL string
}

type OpenAIConfig struct {
	APIKey              string
	BaseURL             string
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimensions int
}

type LinksConfig struct {
	PolicyFile   string
	TTL          time.Duration
	Timeout      time.Duration
	MaxRedirects int
	Sweep        time.Duration
	Debug        bool
}

type LoaderConfig struct {
	URLsFile   string
	Feeds      []string
	FetchPages bool
}

func LoadRuntimeConfig(service string) (RuntimeConfig, error) {
	cfg := RuntimeConfig{
		Service:  service,
		LogLevel: defaultLogLevel,
		Database: DatabaseConfig{
			Driver:          "pgx",
			MaxOpenConns:    defaultDBMaxOpenConns,
			MaxIdleConns:    defaultDBMaxIdleConns,
			ConnMaxLifetime: defaultDBConnMaxLifetime,
			PingTimeout:     defaultDBPingTimeout,
		},
		HTTP: HTTPConfig{
			Addr:            defaultHTTPAddr,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		OpenAI: OpenAIConfig{
			ChatModel:           defaultChatModel,
			EmbeddingModel:      defaultEmbeddingModel,
			EmbeddingDimensions: defaultEmbeddingDimensions,
		},
		Links: LinksConfig{
			TTL:          liveness.DefaultTTL,
			Timeout:      liveness.DefaultTimeout,
			MaxRedirects: liveness.DefaultMaxRedirects,
			Sweep:        defaultLivenessSweep,
		},
		Loader: LoaderConfig{
			URLsFile:   defaultURLsFile,
			FetchPages: true,
		},
	}

	if v := envString("GREENLIST_SERVICE_NAME"); v != "" {
		cfg.Service = v
	}
	cfg.LogLevel = strings.ToLower(stringWithDefault("GREENLIST_LOG_LEVEL", cfg.LogLevel))

	if port := envString("PORT"); port != "" {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	cfg.HTTP.Addr = stringWithDefault("GREENLIST_HTTP_ADDR", cfg.HTTP.Addr)

	shutdownTimeout, err := durationFromEnv("GREENLIST_HTTP_SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)
	if err != nil {
		return cfg, err
	}
	if shutdownTimeout <= 0 {
		return cfg, fmt.Errorf("GREENLIST_HTTP_SHUTDOWN_TIMEOUT must be greater than zero")
	}
	cfg.HTTP.ShutdownTimeout = shutdownTimeout

	cfg.Database.Driver = stringWithDefault("GREENLIST_DB_DRIVER", cfg.Database.Driver)
	switch cfg.Database.Driver {
	case "pgx", "postgres":
	default:
		return cfg, fmt.Errorf("GREENLIST_DB_DRIVER must be pgx or postgres, got %q", cfg.Database.Driver)
	}

	maxOpenConns, err := intFromEnv("GREENLIST_DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	if err != nil {
		return cfg, err
	}
	if maxOpenConns < 0 {
		return cfg, fmt.Errorf("GREENLIST_DB_MAX_OPEN_CONNS must be non-negative")
	}
	cfg.Database.MaxOpenConns = maxOpenConns

	maxIdleConns, err := intFromEnv("GREENLIST_DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	if err != nil {
		return cfg, err
	}
	if maxIdleConns < 0 {
		return cfg, fmt.Errorf("GREENLIST_DB_MAX_IDLE_CONNS must be non-negative")
	}
	cfg.Database.MaxIdleConns = maxIdleConns

	connMaxLifetime, err := durationFromEnv("GREENLIST_DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)
	if err != nil {
		return cfg, err
	}
	cfg.Database.ConnMaxLifetime = connMaxLifetime

	pingTimeout, err := durationFromEnv("GREENLIST_DB_PING_TIMEOUT", cfg.Database.PingTimeout)
	if err != nil {
		return cfg, err
	}
	if pingTimeout <= 0 {
		return cfg, fmt.Errorf("GREENLIST_DB_PING_TIMEOUT must be greater than zero")
	}
	cfg.Database.PingTimeout = pingTimeout

	dsn := envString("GREENLIST_DSN")
	if dsn == "" {
		return cfg, fmt.Errorf("GREENLIST_DSN is required")
	}
	cfg.Database.DSN = dsn

	cfg.Search.URL = envString("MEILI_URL")

	cfg.OpenAI.APIKey = envString("OPENAI_API_KEY")
	if cfg.OpenAI.APIKey == "" {
		return cfg, fmt.Errorf("OPENAI_API_KEY is required")
	}
	cfg.OpenAI.BaseURL = envString("OPENAI_BASE_URL")
	cfg.OpenAI.ChatModel = stringWithDefault("GREENLIST_CHAT_MODEL", cfg.OpenAI.ChatModel)
	cfg.OpenAI.EmbeddingModel = stringWithDefault("GREENLIST_EMBEDDING_MODEL", cfg.OpenAI.EmbeddingModel)
	dims, err := intFromEnv("GREENLIST_EMBEDDING_DIMENSIONS", cfg.OpenAI.EmbeddingDimensions)
	if err != nil {
		return cfg, err
	}
	if dims <= 0 {
		return cfg, fmt.Errorf("GREENLIST_EMBEDDING_DIMENSIONS must be a positive integer")
	}
	cfg.OpenAI.EmbeddingDimensions = dims

	cfg.Links.PolicyFile = envString("GREENLIST_POLICY_FILE")

	ttl, err := durationFromEnv("GREENLIST_LIVENESS_TTL", cfg.Links.TTL)
	if err != nil {
		return cfg, err
	}
	if ttl <= 0 {
		return cfg, fmt.Errorf("GREENLIST_LIVENESS_TTL must be greater than zero")
	}
	cfg.Links.TTL = ttl

	timeout, err := durationFromEnv("GREENLIST_LIVENESS_TIMEOUT", cfg.Links.Timeout)
	if err != nil {
		return cfg, err
	}
	if timeout <= 0 {
		return cfg, fmt.Errorf("GREENLIST_LIVENESS_TIMEOUT must be greater than zero")
	}
	cfg.Links.Timeout = timeout

	maxRedirects, err := intFromEnv("GREENLIST_LIVENESS_MAX_REDIRECTS", cfg.Links.MaxRedirects)
	if err != nil {
		return cfg, err
	}
	if maxRedirects < 0 {
		return cfg, fmt.Errorf("GREENLIST_LIVENESS_MAX_REDIRECTS must be non-negative")
	}
	cfg.Links.MaxRedirects = maxRedirects

	sweep, err := durationFromEnv("GREENLIST_LIVENESS_SWEEP", cfg.Links.Sweep)
	if err != nil {
		return cfg, err
	}
	cfg.Links.Sweep = sweep

	if cfg.Links.Debug, err = boolFromEnv("LINK_DEBUG", false); err != nil {
		return cfg, err
	}

	cfg.Loader.URLsFile = stringWithDefault("GREENLIST_URLS_FILE", cfg.Loader.URLsFile)
	cfg.Loader.Feeds = listFromEnv("GREENLIST_FEEDS")
	if cfg.Loader.FetchPages, err = boolFromEnv("GREENLIST_FETCH_PAGES", cfg.Loader.FetchPages); err != nil {
		return cfg, err
	}

	if cfg.Expose, err = boolFromEnv("GREENLIST_EXPOSE_CONFIG", false); err != nil {
		return cfg, err
	}

	return cfg, nil
}

type RuntimeConfigSnapshot struct {
	Service  string           `json:"service"`
	LogLevel string           `json:"log_level"`
	HTTP     HTTPSnapshot     `json:"http"`
	Database DatabaseSnapshot `json:"database"`
	Search   SearchSnapshot   `json:"search"`
	OpenAI   OpenAISnapshot   `json:"openai"`
	Links    LinksSnapshot    `json:"links"`
	Loader   LoaderSnapshot   `json:"loader"`
}

type HTTPSnapshot struct {
	Addr            string `json:"addr"`
	ShutdownTimeout string `json:"shutdown_timeout"`
}

type DatabaseSnapshot struct {
	Driver          string `json:"driver"`
	DSN             string `json:"dsn"`
	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime string `json:"conn_max_lifetime"`
	PingTimeout     string `json:"ping_timeout"`
}

type SearchSnapshot struct {
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// OpenAISnapshot never carries the API key.
type OpenAISnapshot struct {
	BaseURL             string `json:"base_url"`
	ChatModel           string `json:"chat_model"`
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
}

type LinksSnapshot struct {
	PolicyFile   string `json:"policy_file"`
	TTL          string `json:"ttl"`
	Timeout      string `json:"timeout"`
	MaxRedirects int    `json:"max_redirects"`
	Sweep        string `json:"sweep"`
	Debug        bool   `json:"debug"`
}

type LoaderSnapshot struct {
	URLsFile   string   `json:"urls_file"`
	Feeds      []string `json:"feeds"`
	FetchPages bool     `json:"fetch_pages"`
}

func (cfg RuntimeConfig) Snapshot() RuntimeConfigSnapshot {
	policyFile := cfg.Links.PolicyFile
	if policyFile == "" {
		policyFile = "<embedded>"
	}
	return RuntimeConfigSnapshot{
		Service:  cfg.Service,
		LogLevel: cfg.LogLevel,
		HTTP: HTTPSnapshot{
			Addr:            cfg.HTTP.Addr,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout.String(),
		},
		Database: DatabaseSnapshot{
			Driver:          cfg.Database.Driver,
			DSN:             sanitizeDSN(cfg.Database.DSN),
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime.String(),
			PingTimeout:     cfg.Database.PingTimeout.String(),
		},
		Search: SearchSnapshot{
			URL:     cfg.Search.URL,
			Enabled: cfg.Search.URL != "",
		},
		OpenAI: OpenAISnapshot{
			BaseURL:             cfg.OpenAI.BaseURL,
			ChatModel:           cfg.OpenAI.ChatModel,
			EmbeddingModel:      cfg.OpenAI.EmbeddingModel,
			EmbeddingDimensions: cfg.OpenAI.EmbeddingDimensions,
		},
		Links: LinksSnapshot{
			PolicyFile:   policyFile,
			TTL:          cfg.Links.TTL.String(),
			Timeout:      cfg.Links.Timeout.String(),
			MaxRedirects: cfg.Links.MaxRedirects,
			Sweep:        cfg.Links.Sweep.String(),
			Debug:        cfg.Links.Debug,
		},
		Loader: LoaderSnapshot{
			URLsFile:   cfg.Loader.URLsFile,
			Feeds:      append([]string{}, cfg.Loader.Feeds...),
			FetchPages: cfg.Loader.FetchPages,
		},
	}
}

func RegisterConfigRoute(e *echo.Echo, cfg RuntimeConfig) {
	if !cfg.Expose {
		return
	}

	e.GET("/config", func(c echo.Context) error {
		return c.JSON(http.StatusOK, cfg.Snapshot())
	})
}

var sensitiveDSNKeys = []string{"password", "pass", "pwd", "password_file"}

func sanitizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "<redacted>"
	}
	if parsed.User != nil {
		parsed.User = url.User(parsed.User.Username())
	}
	if parsed.RawQuery != "" {
		query := parsed.Query()
		for _, key := range sensitiveDSNKeys {
			query.Del(key)
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func stringWithDefault(key, fallback string) string {
	if v := envString(key); v != "" {
		return v
	}
	return fallback
}

func listFromEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(envString(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	if v := envString(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return b, nil
	}
	return fallback, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	if v := envString(key); v != "" {
		duration, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		if duration < 0 {
			return 0, fmt.Errorf("%s must not be negative", key)
		}
		return duration, nil
	}
	return fallback, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	if v := envString(key); v != "" {
		value, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return value, nil
	}
	return fallback, nil
}
