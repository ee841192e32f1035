// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Session  SessionConfig
	Preview  PreviewConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080). PORT is accepted for
	// platforms that inject it.
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080" validate:"min=1,max=65535"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s" validate:"gte=0"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s" validate:"gte=0"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s" validate:"gte=0"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" validate:"gt=0"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s" validate:"gt=0"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed size of one file in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800" validate:"gt=0"`

	// MaxFiles is the maximum number of files in one upload (default: 20)
	MaxFiles int `env:"UPLOAD_MAX_FILES" default:"20" validate:"gt=0"`

	// MaxConcurrent is the maximum number of uploads decoded at once (default: 4)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"4" validate:"gt=0"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s" validate:"gt=0"`

	// DecodeWorkers bounds parallel file decoding within one upload (default: 4)
	DecodeWorkers int `env:"UPLOAD_DECODE_WORKERS" default:"4" validate:"gt=0"`

	// UnreadablePolicy is "abort" or "skip" (default: abort)
	UnreadablePolicy string `env:"UPLOAD_UNREADABLE_POLICY" default:"abort" validate:"oneof=abort skip"`
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	// TTL is the idle lifetime of a session (default: 30m)
	TTL time.Duration `env:"SESSION_TTL" default:"30m" validate:"gt=0"`

	// CookieName names the session cookie (default: sheetclean_session)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"sheetclean_session" validate:"required,printascii"`

	// CookieSecure sets the Secure attribute on the cookie (default: false)
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" default:"false"`
}

// PreviewConfig holds preview sizes.
type PreviewConfig struct {
	MergedRows  int `env:"PREVIEW_MERGED_ROWS" default:"10" validate:"gt=0"`
	CleanedRows int `env:"PREVIEW_CLEANED_ROWS" default:"20" validate:"gt=0"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100" validate:"required_if=Enabled true,gte=0"`

	// UploadLimit is requests per minute for upload and clean endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10" validate:"required_if=Enabled true,gte=0"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES" validate:"dive,cidr|ip"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// AllowedOrigins lists origins allowed to call /api cross-origin
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" validate:"oneof=text json"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled serves /metrics and records pipeline metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Namespace prefixes every metric name (default: sheetclean)
	Namespace string `env:"METRICS_NAMESPACE" default:"sheetclean" validate:"required"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// String returns a compact representation of the config for logging.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Upload: {MaxFileSize: %d, MaxFiles: %d, MaxConcurrent: %d, Policy: %q}, ",
		c.Upload.MaxFileSize, c.Upload.MaxFiles, c.Upload.MaxConcurrent, c.Upload.UnreadablePolicy))
	b.WriteString(fmt.Sprintf("Session: {TTL: %s, Cookie: %q}, ", c.Session.TTL, c.Session.CookieName))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}, ",
		c.Logging.Level, c.Logging.Format))
	b.WriteString(fmt.Sprintf("Metrics: {Enabled: %v}", c.Metrics.Enabled))
	b.WriteString("}")
	return b.String()
}
