package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrNetlifyNotConfigured is returned by every operation when the Netlify
// credentials were absent from the environment at startup. The message is part
// of the API contract consumed by the frontend.
var ErrNetlifyNotConfigured = errors.New("NETLIFY_SITE_ID or NETLIFY_ACCESS_TOKEN missing")

// Config captures runtime configuration for the domains service. It is built
// once at process start and injected into every component; nothing reads the
// environment after Load returns.
type Config struct {
	Port int

	NetlifyAPIBase string
	NetlifySiteID  string
	NetlifyToken   string

	SupabaseURL        string
	SupabaseServiceKey string

	CloudflareAPIBase string
	CloudflareZoneID  string
	CloudflareToken   string
	CloudflareOrigin  string

	HTTPTimeout     time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	APIRatePerMin   int
	APIRateBurst    int
	MaxBodyBytes    int64
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables. Several deployment
// environments name the same credential differently, so each group is resolved
// first-match-wins. Missing Netlify or Supabase credentials are not fatal
// here; operations fail fast with a structured error instead.
func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	timeoutSeconds, err := getEnvInt("HTTP_TIMEOUT_SECONDS", 15)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT_SECONDS: %w", err)
	}
	retryAttempts, err := getEnvInt("NETLIFY_RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid NETLIFY_RETRY_ATTEMPTS: %w", err)
	}
	retryBaseMillis, err := getEnvInt("NETLIFY_RETRY_BASE_MS", 500)
	if err != nil {
		return nil, fmt.Errorf("invalid NETLIFY_RETRY_BASE_MS: %w", err)
	}
	apiRatePerMin, err := getEnvInt("API_RATE_LIMIT_PER_MIN", 300)
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_LIMIT_PER_MIN: %w", err)
	}
	apiRateBurst, err := getEnvInt("API_RATE_LIMIT_BURST", 450)
	if err != nil {
		return nil, fmt.Errorf("invalid API_RATE_LIMIT_BURST: %w", err)
	}
	maxBodyBytes, err := getEnvInt64("API_MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid API_MAX_BODY_BYTES: %w", err)
	}
	idleTimeoutSeconds, err := getEnvInt("API_IDLE_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid API_IDLE_TIMEOUT_SECONDS: %w", err)
	}

	return &Config{
		Port: port,

		NetlifyAPIBase: getEnvDefault("NETLIFY_API_BASE", "https://api.netlify.com/api/v1"),
		NetlifySiteID:  firstEnv("NETLIFY_SITE_ID", "VITE_NETLIFY_SITE_ID"),
		NetlifyToken:   firstEnv("NETLIFY_API_TOKEN", "NETLIFY_ACCESS_TOKEN", "VITE_NETLIFY_ACCESS_TOKEN"),

		SupabaseURL:        firstEnv("SUPABASE_URL", "PROJECT_URL", "VITE_SUPABASE_URL"),
		SupabaseServiceKey: firstEnv("SUPABASE_SERVICE_ROLE_KEY", "SERVICE_ROLE_SECRET"),

		CloudflareAPIBase: getEnvDefault("CLOUDFLARE_API_BASE", "https://api.cloudflare.com/client/v4"),
		CloudflareZoneID:  firstEnv("CLOUDFLARE_DOMAIN_ZONE_ID", "CF_ZONE_ID"),
		CloudflareToken:   firstEnv("CLOUDFLARE_WORKERS_API", "CLOUDFLARE_API_TOKEN", "CF_API_TOKEN"),
		CloudflareOrigin:  getEnvDefault("CLOUDFLARE_ORIGIN_SERVER", "domains.backlinkoo.com"),

		HTTPTimeout:     time.Duration(timeoutSeconds) * time.Second,
		RetryAttempts:   retryAttempts,
		RetryBaseDelay:  time.Duration(retryBaseMillis) * time.Millisecond,
		APIRatePerMin:   apiRatePerMin,
		APIRateBurst:    apiRateBurst,
		MaxBodyBytes:    maxBodyBytes,
		IdleTimeout:     time.Duration(idleTimeoutSeconds) * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}, nil
}

// RequireNetlify fails every Netlify-backed operation up front when the
// credentials were never provided, before any network call is made.
func (c *Config) RequireNetlify() error {
	if c.NetlifySiteID == "" || c.NetlifyToken == "" {
		return ErrNetlifyNotConfigured
	}
	return nil
}

// HasSupabase reports whether the persistence gateway is usable.
func (c *Config) HasSupabase() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// HasCloudflare reports whether the custom-hostname registrar is usable.
func (c *Config) HasCloudflare() bool {
	return c.CloudflareZoneID != "" && c.CloudflareToken != ""
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func getEnvInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
