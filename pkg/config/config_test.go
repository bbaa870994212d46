package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MODEL_BUNDLE_DIR", "/models/sms-ner/")
	t.Setenv("CLASSIFIER_BACKEND", "")
	t.Setenv("ONNX_MODEL_PATH", "")
	t.Setenv("DB_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BackendONNX, cfg.Model.Backend)
	assert.Equal(t, "/models/sms-ner/model.onnx", cfg.Model.OnnxPath)
	assert.Equal(t, 128, cfg.Model.MaxLength)
	assert.Equal(t, 10*time.Second, cfg.Model.Timeout)
	assert.False(t, cfg.Database.Enabled())
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, time.UTC, cfg.Model.Location())
}

func TestLoad_Remote(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MODEL_BUNDLE_DIR", "/models")
	t.Setenv("CLASSIFIER_BACKEND", "Remote")
	t.Setenv("CLASSIFIER_URL", "http://ner:8001/")
	t.Setenv("CLASSIFIER_TIMEOUT", "3s")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("TIMEZONE", "Africa/Cairo")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendRemote, cfg.Model.Backend)
	assert.Equal(t, "http://ner:8001", cfg.Model.RemoteURL)
	assert.Equal(t, 3*time.Second, cfg.Model.Timeout)
	assert.False(t, cfg.Observability.MetricsEnabled)
	assert.Equal(t, "Africa/Cairo", cfg.Model.Location().String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"remote without url", func(c *Config) { c.Model.Backend = BackendRemote }, "CLASSIFIER_URL"},
		{"unknown backend", func(c *Config) { c.Model.Backend = "tflite" }, "unknown CLASSIFIER_BACKEND"},
		{"short sequence", func(c *Config) { c.Model.MaxLength = 1 }, "MODEL_MAX_LENGTH"},
		{"bad timezone", func(c *Config) { c.Model.Timezone = "Mars/Olympus" }, "TIMEZONE"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "SERVER_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server: ServerConfig{Port: 8080},
				Model: ModelConfig{
					BundleDir: "/models",
					MaxLength: 128,
					Backend:   BackendONNX,
					OnnxPath:  "/models/model.onnx",
					Timezone:  "UTC",
				},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "app", Password: "p@ss", Name: "extractor", SSLMode: "require"}
	assert.True(t, d.Enabled())
	assert.Equal(t, "postgres://app:p%40ss@db:5433/extractor?sslmode=require", d.DSN())
}
