package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultMetricsAddr        = ":9090"
	defaultBackendTimeout     = 30 * time.Second
	defaultCacheStaleTime     = 30 * time.Second
	defaultCacheGCTime        = 5 * time.Minute
	defaultStatusPollInterval = 30 * time.Second
	defaultFreshnessTick      = 30 * time.Second
	defaultSessionLifetime    = 12 * time.Hour
)

type Config struct {
	HTTPAddr           string
	MetricsAddr        string
	BackendURL         string
	BackendTimeout     time.Duration
	CacheStaleTime     time.Duration
	CacheGCTime        time.Duration
	StatusPollInterval time.Duration
	FreshnessTick      time.Duration
	AuthCookieSecure   bool
	SessionLifetime    time.Duration
	SessionDatabaseURL string
	OTLPEndpoint       string
	StaticDir          string
	// Regions offered by the topology region filter.
	Regions []string
}

type LoadOptions struct {
	RequireBackendURL         bool
	RequireSessionDatabaseURL bool
}

// Load reads the configuration needed by commands that talk to the backend.
func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireBackendURL: true})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		HTTPAddr:           getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:        getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		BackendURL:         strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_URL")), "/"),
		BackendTimeout:     getenvDurationDefault("BACKEND_TIMEOUT", defaultBackendTimeout),
		CacheStaleTime:     getenvDurationDefault("CACHE_STALE_TIME", defaultCacheStaleTime),
		CacheGCTime:        getenvDurationDefault("CACHE_GC_TIME", defaultCacheGCTime),
		StatusPollInterval: getenvDurationDefault("STATUS_POLL_INTERVAL", defaultStatusPollInterval),
		FreshnessTick:      getenvDurationDefault("FRESHNESS_TICK", defaultFreshnessTick),
		AuthCookieSecure:   getenvBoolDefault("AUTH_COOKIE_SECURE", false),
		SessionLifetime:    getenvDurationDefault("SESSION_LIFETIME", defaultSessionLifetime),
		SessionDatabaseURL: strings.TrimSpace(os.Getenv("SESSION_DATABASE_URL")),
		OTLPEndpoint:       strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		StaticDir:          strings.TrimSpace(os.Getenv("STATIC_DIR")),
		Regions:            getenvList("AWS_REGIONS"),
	}

	if opts.RequireBackendURL && cfg.BackendURL == "" {
		return cfg, errors.New("BACKEND_URL is required")
	}
	if opts.RequireSessionDatabaseURL && cfg.SessionDatabaseURL == "" {
		return cfg, errors.New("SESSION_DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Invalid or non-positive durations fall back to the default.
func getenvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// getenvList splits a comma separated value, dropping blanks and duplicates.
func getenvList(key string) []string {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		out = append(out, part)
	}
	return out
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}
