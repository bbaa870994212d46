// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Classifier backends.
const (
	BackendONNX   = "onnx"
	BackendRemote = "remote"
)

// Config holds all runtime configuration.
type Config struct {
	Server        ServerConfig
	Model         ModelConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	// MaxBodyBytes caps RPC request bodies, export files included.
	MaxBodyBytes int64
}

type ModelConfig struct {
	BundleDir   string
	MaxLength   int
	Backend     string
	OnnxPath    string
	OnnxLibrary string
	Sessions    int
	RemoteURL   string
	Timeout     time.Duration
	Workers     int
	LexiconPath string
	Timezone    string
	DateFormat  string
}

// DatabaseConfig is optional. An empty Host disables the extraction store.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type AuthConfig struct {
	// JWTSecret enables bearer-token auth on RPC procedures when set.
	JWTSecret string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	ServiceName    string
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

// DSN builds a Postgres connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Load reads .env (if present) then environment variables.
func Load() (*Config, error) {
	// Best-effort: load .env from current directory
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "0.0.0.0"),
			Port:               getInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getInt("RATE_LIMIT_PER_SECOND", 0),
			RateLimitBurst:     getInt("RATE_LIMIT_BURST", 0),
			MaxBodyBytes:       int64(getInt("MAX_BODY_BYTES", 8<<20)),
		},
		Model: ModelConfig{
			BundleDir:   getEnv("MODEL_BUNDLE_DIR", "./model"),
			MaxLength:   getInt("MODEL_MAX_LENGTH", 128),
			Backend:     strings.ToLower(getEnv("CLASSIFIER_BACKEND", BackendONNX)),
			OnnxPath:    getEnv("ONNX_MODEL_PATH", ""),
			OnnxLibrary: getEnv("ONNXRUNTIME_SHARED_LIBRARY_PATH", ""),
			Sessions:    getInt("ONNX_SESSIONS", 0),
			RemoteURL:   strings.TrimRight(getEnv("CLASSIFIER_URL", ""), "/"),
			Timeout:     getDuration("CLASSIFIER_TIMEOUT", 10*time.Second),
			Workers:     getInt("EXTRACT_WORKERS", 0),
			LexiconPath: getEnv("LEXICON_PATH", ""),
			Timezone:    getEnv("TIMEZONE", "UTC"),
			DateFormat:  getEnv("DATE_FORMAT", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "extractor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getBool("METRICS_ENABLED", true),
			ServiceName:    getEnv("SERVICE_NAME", "entity-extractor"),
		},
		Profiling: ProfilingConfig{
			Enabled: getBool("PPROF_ENABLED", false),
			Port:    getInt("PPROF_PORT", 6060),
		},
	}

	if cfg.Model.OnnxPath == "" && cfg.Model.BundleDir != "" {
		cfg.Model.OnnxPath = strings.TrimRight(cfg.Model.BundleDir, "/") + "/model.onnx"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.Model.BundleDir == "" {
		errs = append(errs, errors.New("MODEL_BUNDLE_DIR is required"))
	}
	if c.Model.MaxLength < 2 {
		errs = append(errs, fmt.Errorf("MODEL_MAX_LENGTH must be at least 2, got %d", c.Model.MaxLength))
	}
	switch c.Model.Backend {
	case BackendONNX:
		if c.Model.OnnxPath == "" {
			errs = append(errs, errors.New("ONNX_MODEL_PATH is required for the onnx backend"))
		}
	case BackendRemote:
		if c.Model.RemoteURL == "" {
			errs = append(errs, errors.New("CLASSIFIER_URL is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CLASSIFIER_BACKEND %q", c.Model.Backend))
	}
	if _, err := time.LoadLocation(c.Model.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE: %w", err))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, UTC when it cannot be loaded.
func (m ModelConfig) Location() *time.Location {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	return raw == "1" || strings.EqualFold(raw, "true")
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return d
}
