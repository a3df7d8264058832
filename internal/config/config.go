package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	devAccessSecret  = "dev_access_secret_change_me_0123456789"
	devRefreshSecret = "dev_refresh_secret_change_me_0123456789"
	minSecretLength  = 32
)

// Config is the process configuration assembled from the environment
type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	DatabaseDSN string

	AccessSecret  string
	RefreshSecret string
	CookieSecure  bool

	CORSOrigins     []string
	SuperAdminEmail string
	FrontendURL     string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3UsePathStyle  bool
	S3PublicBaseURL string

	RedisAddr          string
	RateLimitPerMinute int

	DigestSchedule string
}

// Release reports whether gin runs in release mode
func (c *Config) Release() bool {
	return c.GinMode == "release"
}

// MailEnabled reports whether SMTP delivery is configured
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUsername != ""
}

// StorageEnabled reports whether an S3 bucket is configured
func (c *Config) StorageEnabled() bool {
	return c.S3Bucket != ""
}

// Load reads configs/.env (if present) and the process environment
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	return FromEnv()
}

// FromEnv builds a Config from the current environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AccessSecret:       os.Getenv("JWT_SECRET"),
		RefreshSecret:      os.Getenv("JWT_REFRESH_SECRET"),
		SuperAdminEmail:    strings.ToLower(getEnv("SUPER_ADMIN_EMAIL", "admin@example.com")),
		FrontendURL:        strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUsername:       os.Getenv("SMTP_USERNAME"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Region:           getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3AccessKey:        os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:        os.Getenv("S3_SECRET_KEY"),
		S3UsePathStyle:     getEnvBool("S3_USE_PATH_STYLE", false),
		S3PublicBaseURL:    strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
		DigestSchedule:     getEnv("DIGEST_SCHEDULE", "0 7 * * 1"),
	}
	cfg.MailFrom = getEnv("MAIL_FROM", cfg.SMTPUsername)
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", cfg.Release())
	cfg.CORSOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"))
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", buildDSN())

	if err := cfg.resolveSecrets(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolveSecrets() error {
	if c.Release() {
		if len(c.AccessSecret) < minSecretLength || len(c.RefreshSecret) < minSecretLength {
			return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must be at least %d characters in release mode", minSecretLength)
		}
	}
	if c.AccessSecret == "" {
		c.AccessSecret = devAccessSecret
	}
	if c.RefreshSecret == "" {
		c.RefreshSecret = devRefreshSecret
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	return nil
}

func buildDSN() string {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	name := getEnv("DB_NAME", "hokenhub")
	sslMode := getEnv("DB_SSLMODE", "disable")
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return dsn.String()
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
