package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range envBindings {
		for _, n := range names {
			t.Setenv(n, "")
			require.NoError(t, os.Unsetenv(n))
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.App.Port)
	assert.Equal(t, StoreMongo, cfg.Store.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "http://localhost:3000", cfg.App.FrontendURL)
	assert.Equal(t, devJWTSecret, cfg.JWT.Secret)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8081")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("FRONTEND_URL", "https://chat.example.com/")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("STORE_DRIVER", "Memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.App.Port)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, "https://chat.example.com", cfg.App.FrontendURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("app:\n  port: 5001\nmongo:\n  db: chat-test\njwt:\n  secret: from-file\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("MONGO_DB", "chat-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5001, cfg.App.Port)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "chat-env", cfg.Mongo.DB, "environment wins over the file")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "production without secret", env: map[string]string{"APP_ENV": "production"}},
		{name: "bad port", env: map[string]string{"PORT": "70000"}},
		{name: "unknown store", env: map[string]string{"STORE_DRIVER": "postgres"}},
		{name: "zero expiry", env: map[string]string{"JWT_EXPIRY": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
