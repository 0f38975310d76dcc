package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-default-jwt-secret"

// Config holds the application configuration.
type Config struct {
	Env  string
	Port string

	MongoDBURI string
	DBName     string

	JWTSecret    string
	TokenTTL     time.Duration
	CookieSecure bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	OTPTTL        time.Duration

	AllowedOrigins []string
	MaxUploadBytes int64
	SeedData       bool

	SMTP SMTPConfig
}

// SMTPConfig describes the outgoing mail server used for verification codes.
// OAuth fields are only used for Gmail XOAUTH2; when empty, PLAIN auth is used.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string

	OAuthClientID     string
	OAuthClientSecret string
	OAuthRefreshToken string
}

// Enabled reports whether an SMTP server is configured at all.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

// UsesOAuth reports whether the Gmail XOAUTH2 flow should be used.
func (c SMTPConfig) UsesOAuth() bool {
	return c.OAuthClientID != "" && c.OAuthRefreshToken != ""
}

// LoadConfig loads configuration from a .env file when present, then from the environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	env := getEnv("APP_ENV", "local")

	cfg := &Config{
		Env:  env,
		Port: getEnv("PORT", "5000"),

		MongoDBURI: getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		DBName:     getEnv("DB_NAME", "educhat"),

		JWTSecret:    getEnv("JWT_SECRET", defaultJWTSecret),
		TokenTTL:     getDuration("TOKEN_TTL", 30*24*time.Hour),
		CookieSecure: getBool("COOKIE_SECURE", env == "prod"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		OTPTTL:        getDuration("OTP_TTL", 10*time.Minute),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 10<<20)),
		SeedData:       getBool("SEED_DATA", env == "local"),

		SMTP: SMTPConfig{
			Host:              getEnv("SMTP_HOST", ""),
			Port:              getEnv("SMTP_PORT", "587"),
			Username:          getEnv("SMTP_USER", ""),
			Password:          getEnv("SMTP_PASS", ""),
			From:              getEnv("SMTP_FROM", getEnv("SMTP_USER", "")),
			OAuthClientID:     getEnv("GMAIL_CLIENT_ID", ""),
			OAuthClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
			OAuthRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		},
	}
	return cfg
}

// UsesDefaultSecret reports whether JWT_SECRET was left at its development value.
func (c *Config) UsesDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

// getEnv returns the value of key, or defaultValue when unset.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("Invalid integer for %s=%q, using %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}

func getBool(key string, defaultValue bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("Invalid boolean for %s=%q, using %t", key, v, defaultValue)
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		log.Printf("Invalid duration for %s=%q, using %s", key, v, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
