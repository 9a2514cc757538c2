package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.Docstore.Driver)
	assert.Equal(t, DriverInline, cfg.Blobstore.Driver)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 7*24*time.Hour, cfg.Blobstore.URLExpiry)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.GitHub.CallbackURL)
	assert.False(t, cfg.GitHub.Enabled())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("BLOBSTORE_DRIVER", "minio")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MINIO_URL_EXPIRY", "2h")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test, https://b.test,")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.True(t, cfg.Blobstore.UseSSL)
	assert.Equal(t, 2*time.Hour, cfg.Blobstore.URLExpiry)
	assert.True(t, cfg.GitHub.Enabled())
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}},
		{"unknown docstore", map[string]string{"DOCSTORE_DRIVER": "firestore"}},
		{"mongo without uri", map[string]string{"DOCSTORE_DRIVER": "mongo"}},
		{"unknown blobstore", map[string]string{"BLOBSTORE_DRIVER": "s3"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "trace"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"bad public url", map[string]string{"MINIO_PUBLIC_BASE_URL": "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testSecret)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"90m", 90 * time.Minute},
		{"", time.Hour},
		{"-5m", time.Hour},
		{"0d", time.Hour},
		{"soon", time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDuration(tt.in, time.Hour))
		})
	}
}
