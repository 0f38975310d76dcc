package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")

	cfg := FromEnv()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "educhat", cfg.DBName)
	assert.Equal(t, 30*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.True(t, cfg.SeedData)
	assert.False(t, cfg.CookieSecure)
	assert.True(t, cfg.UsesDefaultSecret())
	assert.False(t, cfg.SMTP.Enabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SMTP_HOST", "smtp.gmail.com")
	t.Setenv("GMAIL_CLIENT_ID", "cid")
	t.Setenv("GMAIL_REFRESH_TOKEN", "rt")

	cfg := FromEnv()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.CookieSecure)
	assert.False(t, cfg.SeedData)
	assert.False(t, cfg.UsesDefaultSecret())
	assert.True(t, cfg.SMTP.Enabled())
	assert.True(t, cfg.SMTP.UsesOAuth())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TOKEN_TTL", "forever")
	t.Setenv("REDIS_DB", "x")
	t.Setenv("COOKIE_SECURE", "maybe")
	t.Setenv("APP_ENV", "dev")

	cfg := FromEnv()

	assert.Equal(t, 30*24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.False(t, cfg.CookieSecure)
}
