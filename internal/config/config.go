package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Sync     SyncConfig
	YouTube  YouTubeConfig
	AI       AIConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// SyncConfig bounds a single orchestration run.
type SyncConfig struct {
	FetchLimit   int
	BatchSize    int
	FetchTimeout time.Duration
	VideoTimeout time.Duration
	Interval     time.Duration // zero disables the in-process scheduler
	LeaseEnabled bool
	LeaseTTL     time.Duration
}

// YouTubeConfig selects and parameterizes the video source.
type YouTubeConfig struct {
	APIKey      string
	ChannelID   string
	APIBaseURL  string
	FeedBaseURL string
	CacheTTL    time.Duration
}

// AIConfig configures the recipe synthesizer.
type AIConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// StoreConfig selects the content store backend.
type StoreConfig struct {
	Backend       string // "file" or "postgres"
	ContentDir    string
	MigrationsDir string
}

// DatabaseConfig holds Postgres connection settings. Either URL or the
// Cloud SQL fields are used.
type DatabaseConfig struct {
	URL                    string
	InstanceConnectionName string
	User                   string
	Password               string
	Name                   string
}

// RedisConfig holds the optional Redis connection used for caching and leases.
type RedisConfig struct {
	URL string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 330 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultFetchLimit   = 50
	defaultBatchSize    = 5
	defaultFetchTimeout = 30 * time.Second
	defaultVideoTimeout = 60 * time.Second
	defaultLeaseTTL     = 10 * time.Minute

	defaultYouTubeAPIBaseURL  = "https://www.googleapis.com/youtube/v3"
	defaultYouTubeFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"
	defaultVideoCacheTTL      = time.Hour

	defaultAIBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai"
	defaultAIModel       = "gemini-1.5-flash"
	defaultAITemperature = 0.7
	defaultAIMaxTokens   = 2048
	defaultAITimeout     = 60 * time.Second

	defaultStoreBackend  = "file"
	defaultContentDir    = "content/recipes"
	defaultMigrationsDir = "./migrations"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Sync: SyncConfig{
			FetchLimit:   defaultFetchLimit,
			BatchSize:    defaultBatchSize,
			FetchTimeout: defaultFetchTimeout,
			VideoTimeout: defaultVideoTimeout,
			LeaseTTL:     defaultLeaseTTL,
		},
		YouTube: YouTubeConfig{
			APIKey:      os.Getenv("YOUTUBE_API_KEY"),
			ChannelID:   os.Getenv("YOUTUBE_CHANNEL_ID"),
			APIBaseURL:  getEnv("YOUTUBE_API_BASE_URL", defaultYouTubeAPIBaseURL),
			FeedBaseURL: getEnv("YOUTUBE_FEED_BASE_URL", defaultYouTubeFeedBaseURL),
			CacheTTL:    defaultVideoCacheTTL,
		},
		AI: AIConfig{
			BaseURL:     getEnv("AI_BASE_URL", defaultAIBaseURL),
			Model:       getEnv("AI_MODEL", defaultAIModel),
			Temperature: defaultAITemperature,
			MaxTokens:   defaultAIMaxTokens,
			Timeout:     defaultAITimeout,
		},
		Store: StoreConfig{
			Backend:       getEnv("CONTENT_BACKEND", defaultStoreBackend),
			ContentDir:    getEnv("CONTENT_DIR", defaultContentDir),
			MigrationsDir: getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
		},
		Database: DatabaseConfig{
			URL:                    os.Getenv("DATABASE_URL"),
			InstanceConnectionName: os.Getenv("INSTANCE_CONNECTION_NAME"),
			User:                   os.Getenv("DB_USER"),
			Password:               os.Getenv("DB_PASSWORD"),
			Name:                   os.Getenv("DB_NAME"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
	}

	cfg.AI.Provider, cfg.AI.APIKey = resolveAICredential()

	durations := []struct {
		key    string
		target *time.Duration
		unit   time.Duration
	}{
		{"SERVER_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout, time.Second},
		{"SERVER_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout, time.Second},
		{"SERVER_SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeout, time.Second},
		{"SYNC_FETCH_TIMEOUT_SECONDS", &cfg.Sync.FetchTimeout, time.Second},
		{"SYNC_VIDEO_TIMEOUT_SECONDS", &cfg.Sync.VideoTimeout, time.Second},
		{"SYNC_INTERVAL_MINUTES", &cfg.Sync.Interval, time.Minute},
		{"SYNC_LEASE_TTL_SECONDS", &cfg.Sync.LeaseTTL, time.Second},
		{"YOUTUBE_CACHE_TTL_SECONDS", &cfg.YouTube.CacheTTL, time.Second},
		{"AI_TIMEOUT_SECONDS", &cfg.AI.Timeout, time.Second},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		n, err := parseNonNegative(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.target = time.Duration(n) * d.unit
	}

	counts := []struct {
		key    string
		target *int
	}{
		{"SYNC_FETCH_LIMIT", &cfg.Sync.FetchLimit},
		{"SYNC_BATCH_SIZE", &cfg.Sync.BatchSize},
		{"AI_MAX_TOKENS", &cfg.AI.MaxTokens},
	}
	for _, c := range counts {
		v := os.Getenv(c.key)
		if v == "" {
			continue
		}
		n, err := parsePositive(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", c.key, err)
		}
		*c.target = n
	}

	if v := os.Getenv("SYNC_LEASE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SYNC_LEASE_ENABLED: must be a boolean")
		}
		cfg.Sync.LeaseEnabled = enabled
	}

	if v := os.Getenv("AI_TEMPERATURE"); v != "" {
		temp, err := strconv.ParseFloat(v, 32)
		if err != nil || temp < 0 || temp > 2 {
			return Config{}, fmt.Errorf("invalid AI_TEMPERATURE: must be a number between 0 and 2")
		}
		cfg.AI.Temperature = float32(temp)
	}

	switch cfg.Store.Backend {
	case "file", "postgres":
	default:
		return Config{}, fmt.Errorf("invalid CONTENT_BACKEND: must be 'file' or 'postgres'")
	}

	if cfg.Sync.LeaseEnabled && cfg.Redis.URL == "" {
		return Config{}, fmt.Errorf("invalid SYNC_LEASE_ENABLED: REDIS_URL is required for leases")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

// resolveAICredential picks the synthesis key, preferring the generic variable.
func resolveAICredential() (provider, key string) {
	if v := os.Getenv("AI_API_KEY"); v != "" {
		return getEnv("AI_PROVIDER", "gemini"), v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		return "gemini", v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		return "openai", v
	}
	return getEnv("AI_PROVIDER", "gemini"), ""
}

// UsesAPI reports whether the keyed API strategy is configured.
func (c YouTubeConfig) UsesAPI() bool {
	return c.APIKey != "" && c.ChannelID != ""
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseNonNegative(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}

func parsePositive(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
